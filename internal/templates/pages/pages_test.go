package pages

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/keyxmakerx/switchboard/internal/templates/layouts"
)

func TestErrorPage_EscapesMessage(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorPage(403, `<script>alert(1)</script>`).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "<script>alert") {
		t.Error("message was not escaped")
	}
	if !strings.Contains(out, "Forbidden") {
		t.Error("expected status text")
	}
}

func TestPlaceholder_ShowsNothingProtected(t *testing.T) {
	ctx := layouts.SetUserEmail(context.Background(), "secret@x.com")
	var buf bytes.Buffer
	if err := Placeholder().Render(ctx, &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(buf.String(), "secret@x.com") {
		t.Error("placeholder leaked principal data")
	}
	if !strings.Contains(buf.String(), `aria-busy="true"`) {
		t.Error("expected busy marker")
	}
}

func TestAppLayout_RendersMenuAndPrincipal(t *testing.T) {
	ctx := context.Background()
	ctx = layouts.SetUserName(ctx, "Ada <Lovelace>")
	ctx = layouts.SetActivePath(ctx, "/billing")
	ctx = layouts.SetNavItems(ctx, []layouts.NavItem{
		{Label: "Dashboard", Path: "/dashboard", Icon: "fa-gauge"},
		{Label: "Billing", Path: "/billing", Icon: "fa-credit-card"},
	})
	ctx = layouts.SetNeedsSetup(ctx, true)

	var buf bytes.Buffer
	if err := layouts.App("Billing", nil).Render(ctx, &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()

	for _, want := range []string{`href="/dashboard"`, `<li class="active"><a href="/billing"`, "Ada &lt;Lovelace&gt;", `class="banner"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}
