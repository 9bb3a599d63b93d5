package reference

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

func TestErrNotFound_Is(t *testing.T) {
	err := fmt.Errorf("failed to load: %w", ErrNotFound{Entity: "provider", ID: "42"})

	assert.True(t, errors.Is(err, ErrNotFound{}))
	assert.True(t, errors.Is(err, ErrNotFound{Entity: "provider"}))
	assert.True(t, errors.Is(err, ErrNotFound{Entity: "provider", ID: "42"}))
	assert.False(t, errors.Is(err, ErrNotFound{Entity: "user"}))
	assert.False(t, errors.Is(err, ErrNotFound{Entity: "provider", ID: "7"}))
}

func TestProvider_TemplateLanguage(t *testing.T) {
	assert.Equal(t, shared.LanguageFrench, (&Provider{Language: "Français"}).TemplateLanguage())
	assert.Equal(t, shared.LanguageSpanish, (&Provider{}).TemplateLanguage())
}
