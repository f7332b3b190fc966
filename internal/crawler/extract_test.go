package crawler

import (
	"strings"
	"testing"
)

func TestExtractPage_PrefersMainRegion(t *testing.T) {
	html := `<html><head><title>Pricing | Acme</title></head><body>
		<nav>Home About Pricing Contact</nav>
		<main><p>` + strings.Repeat("Our pricing starts at ten dollars per month. ", 5) + `</p></main>
		<footer>Copyright Acme</footer>
	</body></html>`

	p, err := extractPage("https://acme.test/pricing", []byte(html))
	if err != nil {
		t.Fatalf("extractPage() error = %v", err)
	}
	if p.Title != "Pricing | Acme" {
		t.Errorf("Title = %q", p.Title)
	}
	if !strings.Contains(p.Text, "ten dollars per month") {
		t.Errorf("Text missing main content: %q", p.Text)
	}
	if strings.Contains(p.Text, "Copyright Acme") {
		t.Errorf("Text includes footer boilerplate: %q", p.Text)
	}
	if strings.Contains(p.Text, "Home About Pricing Contact") {
		t.Errorf("Text includes navigation: %q", p.Text)
	}
}

func TestExtractPage_StripsScriptsAndStyles(t *testing.T) {
	html := `<html><body><main>
		<script>var tracking = "SECRET";</script>
		<style>.x { color: red }</style>
		<p>` + strings.Repeat("Visible product copy lives here. ", 5) + `</p>
	</main></body></html>`

	p, err := extractPage("https://acme.test/", []byte(html))
	if err != nil {
		t.Fatalf("extractPage() error = %v", err)
	}
	if strings.Contains(p.Text, "SECRET") || strings.Contains(p.Text, "color: red") {
		t.Errorf("script/style text leaked into %q", p.Text)
	}
	if !strings.Contains(p.Text, "Visible product copy") {
		t.Errorf("content lost: %q", p.Text)
	}
}

func TestExtractPage_FallsBackToBody(t *testing.T) {
	html := `<html><head><title>Plain</title></head><body>
		<p>` + strings.Repeat("No semantic landmarks on this page at all. ", 5) + `</p>
	</body></html>`

	p, err := extractPage("https://acme.test/plain", []byte(html))
	if err != nil {
		t.Fatalf("extractPage() error = %v", err)
	}
	if !strings.Contains(p.Text, "No semantic landmarks") {
		t.Errorf("body fallback lost content: %q", p.Text)
	}
}

func TestExtractPage_NormalizesWhitespace(t *testing.T) {
	html := `<html><body><main><p>spaced     out


		text</p><p>` + strings.Repeat("padding so the region passes the length gate. ", 3) + `</p></main></body></html>`

	p, err := extractPage("https://acme.test/", []byte(html))
	if err != nil {
		t.Fatalf("extractPage() error = %v", err)
	}
	if strings.Contains(p.Text, "  ") {
		t.Errorf("runs of spaces survived: %q", p.Text)
	}
}
