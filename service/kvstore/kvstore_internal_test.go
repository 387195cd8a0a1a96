package kvstore

import (
	"testing"

	"github.com/pandodao/anchor-store/core"
	"github.com/stretchr/testify/assert"
)

func Test_hasCollection(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    bool
		wantErr error
	}{
		{"keyed by name", `{"collections":{"wayspot_anchors":{"items":2}}}`, true, nil},
		{"other collection", `{"collections":{"other":{}}}`, false, nil},
		{"no collections field", `{"total":0}`, false, nil},
		{"null collections", `{"collections":null}`, false, nil},
		{"list of names", `{"collections":["a","wayspot_anchors"]}`, true, nil},
		{"list of objects", `{"collections":[{"collection":"wayspot_anchors"}]}`, true, nil},
		{"list without match", `{"collections":[{"name":"b"}]}`, false, nil},
		{"invalid json", `{`, false, core.ErrDeserialization},
		{"invalid collections", `{"collections":12}`, false, core.ErrDeserialization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := hasCollection([]byte(tt.body), "wayspot_anchors")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_truncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab...", truncate("abc", 2))
	assert.Equal(t, "a...", truncate("a锚点", 3))
	assert.Equal(t, "a锚...", truncate("a锚点", 4))
}
