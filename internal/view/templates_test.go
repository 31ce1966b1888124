package view

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

// Pages live in nested directories, which a single-segment glob would
// silently skip. Every template a handler renders by name must be present
// in the parsed set.
func TestNestedPageTemplatesParsed(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	pages := []string{
		"pages/dashboard.html",
		"pages/login.html",
		"pages/masterdata/categories_tree.html",
		"pages/masterdata/category_form.html",
		"pages/masterdata/product_detail.html",
		"pages/masterdata/product_form.html",
		"pages/masterdata/products_list.html",
		"pages/masterdata/supplier_detail.html",
		"pages/masterdata/supplier_form.html",
		"pages/masterdata/suppliers_list.html",
		"pages/masterdata/unit_form.html",
		"pages/masterdata/units_list.html",
		"pages/purchasing/order_detail.html",
		"pages/purchasing/order_form.html",
		"pages/purchasing/orders_list.html",
		"pages/purchasing/receive_form.html",
		"pages/roles/form.html",
		"pages/roles/list.html",
		"pages/users/form.html",
		"pages/users/list.html",
	}
	for _, name := range pages {
		assert.NotNil(t, engine.templates.Lookup(name), "template %s should be parsed", name)
	}
}

func TestRenderNestedPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.Render(rec, "pages/roles/list.html", TemplateData{
		Title:     "Roles",
		CSRFToken: "token-456",
		Data:      map[string]any{"Roles": nil},
	})
	require.NoError(t, err)
	assert.Contains(t, rec.Body.String(), "Roles")
}

func TestRenderLoginPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.Render(rec, "pages/login.html", TemplateData{
		Title:     "Sign in",
		CSRFToken: "token-123",
		Data:      map[string]any{"Errors": map[string]string{}, "Email": "dana@example.com"},
	})
	require.NoError(t, err)

	body := rec.Body.String()
	assert.Contains(t, body, `value="token-123"`)
	assert.Contains(t, body, "dana@example.com")
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
}
