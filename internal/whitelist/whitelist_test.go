package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestChecker_IsWhitelisted(t *testing.T) {
	checker := NewChecker([]string{" Company.com ", "", "partner.org"}, zaptest.NewLogger(t))

	assert.Equal(t, []string{"company.com", "partner.org"}, checker.Domains())
	assert.True(t, checker.IsWhitelisted("alice@company.com"))
	assert.True(t, checker.IsWhitelisted("Alice <alice@COMPANY.com>"))
	assert.True(t, checker.IsWhitelisted("bot@mail.partner.org"))
	assert.False(t, checker.IsWhitelisted("eve@notcompany.com"))
	assert.False(t, checker.IsWhitelisted("no-address"))
}

func TestChecker_Empty(t *testing.T) {
	var nilChecker *Checker
	assert.False(t, nilChecker.IsWhitelisted("alice@company.com"))

	empty := NewChecker(nil, nil)
	assert.False(t, empty.IsWhitelisted("alice@company.com"))
}
