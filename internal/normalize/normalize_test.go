package normalize

import (
	"regexp"
	"testing"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"line breaks removed", "Rs.500.00\r\n debited\nfrom", "Rs.500.00 debitedfrom"},
		{"whitespace collapsed", "Ac   XX4321\t\ton  02-01-2023", "Ac XX4321 on 02-01-2023"},
		{"empty", "\r\n  \n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.in); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

const alertHTML = `<html><head><style>.amt { color: red } Rs.1</style></head>
<body>
<table>
  <tr><td>Dear Customer,</td></tr>
  <tr><td>INR 1,250.00</td><td>was debited</td></tr>
  <tr><td>INR 1,250.00</td></tr>
  <tr><td>on 05/03/2024</td></tr>
  <tr><td>Info: UPI/P2M/4029/SHOP</td></tr>
</table>
<script>var x = "INR 9.99";</script>
</body></html>`

func TestHTML_FiltersAndDeduplicates(t *testing.T) {
	filter := Containing("INR", "debited", "credited", "Info")

	got := HTML(alertHTML, filter)
	want := "INR 1,250.00 was debited Info: UPI/P2M/4029/SHOP"
	if got != want {
		t.Errorf("HTML() = %q, want %q", got, want)
	}
}

func TestHTML_SelfClosingRawText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"unterminated style", `<style/>x<script>var a="Rs"</script><p>INR 10</p>`, ""},
		{"terminated style", `<style/>p{color:red}</style><p>INR 10</p>`, "INR 10"},
		{"self-closing script", `<script/>var a="Rs"</script><p>INR 10</p>`, "INR 10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTML(tt.in, nil); got != tt.want {
				t.Errorf("HTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		isHTML bool
		filter Filter
		want   string
	}{
		{"plain text", "Rs.500.00\ndebited  from", false, nil, "Rs.500.00debited from"},
		{"plain text ignores filter", "INR 10", false, Containing("Rs"), "INR 10"},
		{"html keeps all", "<p>INR 10</p><p>debited</p>", true, nil, "INR 10 debited"},
		{"html filtered", "<p>INR 10</p><p>footer</p>", true, Containing("INR"), "INR 10"},
		{"html markup as text", "<p>INR 10</p>", false, nil, "<p>INR 10</p>"},
		{"empty html", "", true, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.body, tt.isHTML, tt.filter); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestHTML_NilFilterKeepsAllText(t *testing.T) {
	got := HTML(`<p>Hello &amp;  <b>world</b></p><style>p{}</style>`, nil)
	if got != "Hello & world" {
		t.Errorf("HTML() = %q", got)
	}
}

func TestHTML_RewritingFilter(t *testing.T) {
	date := regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	filter := func(text string) (string, bool) {
		if m := date.FindString(text); m != "" {
			return m, true
		}
		return "", false
	}

	got := HTML(`<td>on 05/03/2024</td><td>posted 05/03/2024</td>`, filter)
	if got != "05/03/2024" {
		t.Errorf("HTML() = %q, want a single date", got)
	}
}

func TestMessage_PrefersHTML(t *testing.T) {
	if got := Message("plain\nbody", "<p>html body</p>", nil); got != "html body" {
		t.Errorf("Message() = %q, want html body", got)
	}
	if got := Message("plain  body", "  ", nil); got != "plain body" {
		t.Errorf("Message() = %q, want plain body", got)
	}
}

func TestAny(t *testing.T) {
	f := Any(Containing("Rs"), Matching(regexp.MustCompile(`^\d+\.\d{2}$`)))

	for _, in := range []string{"Rs.10", "12.50"} {
		if _, ok := f(in); !ok {
			t.Errorf("expected %q kept", in)
		}
	}
	if _, ok := f("hello"); ok {
		t.Error("expected hello dropped")
	}
}
