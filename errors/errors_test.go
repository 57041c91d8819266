package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/oglimmer/mdalert/errors"
)

func TestKindOf(t *testing.T) {
	err := apperrors.NewProtocol("oidc.exchange", "token endpoint returned 400")
	assert.Equal(t, apperrors.KindProtocol, apperrors.KindOf(err))
	assert.True(t, apperrors.IsKind(err, apperrors.KindProtocol))
	assert.False(t, apperrors.IsKind(err, apperrors.KindNetwork))
}

func TestKindOfWrapped(t *testing.T) {
	inner := apperrors.NewNetwork("discovery.resolve", stderrors.New("connection refused"))
	wrapped := fmt.Errorf("resolving endpoints: %w", inner)

	assert.Equal(t, apperrors.KindNetwork, apperrors.KindOf(wrapped))
	assert.Contains(t, wrapped.Error(), "discovery.resolve")
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, apperrors.Kind(0), apperrors.KindOf(stderrors.New("plain")))
}
