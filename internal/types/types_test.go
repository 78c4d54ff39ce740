package types

import (
	"encoding/json"
	"testing"

	"github.com/DoyleJ11/codeduel-backend/internal/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitSolution_Passed(t *testing.T) {
	cases := []struct {
		raw     string
		want    int
		wantErr error
	}{
		{`{"roomId":"R","passedTests":5}`, 5, nil},
		{`{"roomId":"R","passedTests":5.0}`, 5, nil},
		{`{"roomId":"R","passedTests":0}`, 0, nil},
		{`{"roomId":"R","passedTests":2.5}`, 0, match.ErrInvalidScore},
		{`{"roomId":"R","passedTests":-1}`, 0, match.ErrInvalidScore},
		{`{"roomId":"R","passedTests":1e12}`, 0, match.ErrInvalidScore},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			var s SubmitSolution
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &s))
			got, err := s.Passed()
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.want, got)
		})
	}
}
