package payload

import (
	"testing"

	"github.com/pandodao/anchor-store/core"
	"github.com/stretchr/testify/assert"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategySequential, false},
		{"sequential", StrategySequential, false},
		{" Concurrent ", StrategyConcurrent, false},
		{"parallel", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, must(ParseStrategy(got.String())))
		})
	}
}

func must(s Strategy, err error) Strategy {
	if err != nil {
		panic(err)
	}

	return s
}

func Test_lastByID(t *testing.T) {
	a1 := &core.Payload{ID: "a", Blob: []byte("1")}
	b := &core.Payload{ID: "b", Blob: []byte("2")}
	a2 := &core.Payload{ID: "a", Blob: []byte("3")}
	c := &core.Payload{ID: "c", Blob: []byte("4")}

	assert.Equal(t, []*core.Payload{b, a2, c}, lastByID([]*core.Payload{a1, b, a2, c}))
	assert.Empty(t, lastByID(nil))
}
