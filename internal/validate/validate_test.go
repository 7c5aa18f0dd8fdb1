package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rule struct {
	Day   int `json:"day" validate:"min=0,max=6"`
	Start int `json:"start" validate:"min=0,max=1440"`
	End   int `json:"end" validate:"min=0,max=1440,gtfield=Start"`
}

type window struct {
	From time.Time `json:"from" validate:"required"`
	To   time.Time `json:"to" validate:"required,gtfield=From"`
}

type doc struct {
	Rules   []rule   `json:"rules" validate:"dive"`
	Windows []window `json:"windows" validate:"dive"`
	Size    int      `json:"size" validate:"min=5,max=240"`
}

func TestStruct_Valid(t *testing.T) {
	now := time.Now()
	err := Struct(doc{
		Rules:   []rule{{Day: 1, Start: 540, End: 1020}},
		Windows: []window{{From: now, To: now.Add(time.Hour)}},
		Size:    30,
	})
	assert.NoError(t, err)
}

func TestStruct_ReportsFieldPath(t *testing.T) {
	tests := []struct {
		name  string
		in    doc
		field string
	}{
		{"day out of range", doc{Rules: []rule{{Day: 1, Start: 0, End: 10}, {Day: 7, Start: 0, End: 10}}, Size: 30}, "rules[1].day"},
		{"end before start", doc{Rules: []rule{{Day: 1, Start: 600, End: 540}}, Size: 30}, "rules[0].end"},
		{"size too small", doc{Size: 4}, "size"},
		{"window inverted", doc{Windows: []window{{From: time.Now(), To: time.Now().Add(-time.Minute)}}, Size: 30}, "windows[0].to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			require.Error(t, err)

			var verr *Error
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.NotEmpty(t, verr.Message)
		})
	}
}

func TestField(t *testing.T) {
	err := Field("from", "must be before %s", "to")
	assert.Equal(t, "from: must be before to", err.Error())
}
