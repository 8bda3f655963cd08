package dispatch

import "testing"

func TestRenderTemplate(t *testing.T) {
	values := map[string]string{
		"value":      "true",
		"capability": "on",
		"instance":   "on",
		"device_id":  "dev-1",
	}

	cases := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "no tokens is idempotent",
			template: `{"power":"on"}`,
			want:     `{"power":"on"}`,
		},
		{
			name:     "all four tokens replaced",
			template: `{"v":"{{value}}","c":"{{capability}}","i":"{{instance}}","d":"{{device_id}}"}`,
			want:     `{"v":"true","c":"on","i":"on","d":"dev-1"}`,
		},
		{
			name:     "unrecognized tokens untouched",
			template: `{"v":"{{value}}","x":"{{mystery}}"}`,
			want:     `{"v":"true","x":"{{mystery}}"}`,
		},
		{
			name:     "repeated token replaced everywhere",
			template: `{{value}}-{{value}}`,
			want:     `true-true`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := renderTemplate(tc.template, values); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestRenderTemplateMissingValueTokenKept(t *testing.T) {
	got := renderTemplate(`{"v":"{{value}}"}`, map[string]string{"capability": "on"})
	if got != `{"v":"{{value}}"}` {
		t.Fatalf("token without a value must stay, got %q", got)
	}
}

func TestStringify(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{true, "true"},
		{false, "false"},
		{float64(1), "1"},
		{float64(0.5), "0.5"},
		{float64(100), "100"},
		{42, "42"},
		{map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tc := range cases {
		if got := stringify(tc.in); got != tc.want {
			t.Fatalf("stringify(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
