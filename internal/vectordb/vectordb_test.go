package vectordb

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "collection_1536_abc", false},
		{"valid with digits", "collection_0123456789", false},
		{"empty", "", true},
		{"uppercase", "Collection_1", true},
		{"hyphen", "collection-1", true},
		{"path traversal", "../etc/passwd", true},
		{"space", "collection 1", true},
		{"semicolon injection", "x; DROP TABLE users", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCollectionNameLength(t *testing.T) {
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, ValidateCollectionName(string(long)))
	assert.NoError(t, ValidateCollectionName(string(long[:63])))
}

func TestCollectionName(t *testing.T) {
	id := uuid.MustParse("3fa85f64-5717-4562-b3fc-2c963f66afa6")

	name := CollectionName(1536, id)
	assert.Equal(t, "collection_1536_3fa85f64_5717_4562_b3fc_2c963f66afa6", name)

	// Derived names must always pass validation.
	assert.NoError(t, ValidateCollectionName(name))

	// Different embedding sizes map to different collections.
	assert.NotEqual(t, name, CollectionName(768, id))
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, IsTransientError(nil))
	assert.False(t, IsTransientError(assert.AnError))

	assert.True(t, IsTransientError(status.Error(grpccodes.Unavailable, "down")))
	assert.True(t, IsTransientError(status.Error(grpccodes.DeadlineExceeded, "slow")))
	assert.True(t, IsTransientError(status.Error(grpccodes.Aborted, "aborted")))
	assert.True(t, IsTransientError(status.Error(grpccodes.ResourceExhausted, "full")))

	assert.False(t, IsTransientError(status.Error(grpccodes.NotFound, "missing")))
	assert.False(t, IsTransientError(status.Error(grpccodes.InvalidArgument, "bad")))
	assert.False(t, IsTransientError(status.Error(grpccodes.PermissionDenied, "no")))
}
