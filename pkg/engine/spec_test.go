package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validSpec() JobSpec {
	return JobSpec{
		Name:            "valid",
		SourceSheetID:   1,
		DestSheetID:     2,
		ColumnMap:       []ColumnPair{{Source: 10, Dest: 20}},
		SourceKeyColumn: 10,
		DestKeyColumn:   20,
	}
}

func TestSpecValidate(t *testing.T) {
	assert.NoError(t, validSpec().Validate())

	s := validSpec()
	s.Name = ""
	assert.Error(t, s.Validate())

	s = validSpec()
	s.DestSheetID = 0
	assert.Error(t, s.Validate())

	s = validSpec()
	s.ColumnMap = nil
	assert.Error(t, s.Validate())

	s = validSpec()
	s.ColumnMap = append(s.ColumnMap, ColumnPair{Source: 10, Dest: 21})
	assert.Error(t, s.Validate(), "duplicate source column")

	s = validSpec()
	s.ColumnMap = append(s.ColumnMap, ColumnPair{Source: 11, Dest: 20})
	assert.Error(t, s.Validate(), "duplicate destination column")

	s = validSpec()
	s.DiffMode = DiffTrackedGroups
	assert.Error(t, s.Validate(), "tracked groups required")

	s.TrackedGroups = [][]ColumnPair{{{Source: 10, Dest: 20}}}
	assert.NoError(t, s.Validate())
}

func TestGateAccepts(t *testing.T) {
	s := JobSpec{GateValues: []string{"Phoenix", "Subcontractor"}}

	assert.True(t, s.GateAccepts("Phoenix"))
	assert.True(t, s.GateAccepts("Subcontractor"))
	assert.False(t, s.GateAccepts("phoenix"))
	assert.False(t, s.GateAccepts("Not Required"))
	assert.False(t, s.GateAccepts(""))

	open := JobSpec{}
	assert.True(t, open.GateAccepts("anything"))
	assert.True(t, open.GateAccepts(""))
}
