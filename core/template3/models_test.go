package template3

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/cts/core"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "CSC101", NormalizeCode(" csc 101 "))
	assert.Equal(t, "CSC101", NormalizeCode("CSC\t101"))
	assert.Equal(t, "", NormalizeCode("   "))
	assert.Equal(t, "intro to programming", NormalizeName("  Intro  to\tProgramming "))
}

func TestTemplate3_Key(t *testing.T) {
	intro := Template3{OldCampusName: "Old University", OldSubjectCode: "CS101", OldSubjectName: "Intro", CourseID: 1}
	tests := []struct {
		name  string
		other Template3
		same  bool
	}{
		{name: "other name, same code", other: Template3{OldCampusName: "old university", OldSubjectCode: "cs 101", OldSubjectName: "Programming", CourseID: 1}, same: true},
		{name: "other code", other: Template3{OldCampusName: "Old University", OldSubjectCode: "CS102", OldSubjectName: "Intro", CourseID: 1}},
		{name: "other course", other: Template3{OldCampusName: "Old University", OldSubjectCode: "CS101", OldSubjectName: "Intro", CourseID: 2}},
		{name: "other campus", other: Template3{OldCampusName: "Other College", OldSubjectCode: "CS101", OldSubjectName: "Intro", CourseID: 1}},
		{name: "no code", other: Template3{OldCampusName: "Old University", OldSubjectName: "Intro", CourseID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, intro.Key() == tt.other.Key())
		})
	}

	byName := Template3{OldCampusName: "Old University", OldSubjectName: "Intro  to Programming", CourseID: 1}
	assert.Equal(t, byName.Key(), Template3{OldCampusName: "old university", OldSubjectName: "intro to programming", CourseID: 1}.Key())
}

func TestTemplate3_matches(t *testing.T) {
	entry := Template3{OldSubjectCode: "CSC 101", OldSubjectName: "Intro to Programming"}
	tests := []struct {
		name       string
		code, subj string
		want       bool
	}{
		{name: "same code", code: "csc101", want: true},
		{name: "code wins over name", code: "CSC102", subj: "Intro to Programming", want: false},
		{name: "name fallback", subj: "intro  to programming", want: true},
		{name: "other name", subj: "Databases", want: false},
		{name: "nothing", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, entry.matches(tt.code, tt.subj))
		})
	}
}

func TestNewTemplate3_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	nt := NewTemplate3{OldCampusName: " Old Uni ", OldSubjectName: "Algebra", CourseID: 1, SimilarityPercentage: 85}
	assert.NoError(t, nt.Validate(validate))
	assert.Equal(t, "Old Uni", nt.OldCampusName)

	nt.SimilarityPercentage = 120
	assert.Error(t, nt.Validate(validate))

	nt = NewTemplate3{OldCampusName: "Old Uni", CourseID: 1, SimilarityPercentage: 85}
	assert.Error(t, nt.Validate(validate))
}
