package depid

import "testing"

// Authoritative name-sanitization seeds, reproduced verbatim.
func TestSanitizeGitName(t *testing.T) {
	nul := string([]byte{0})
	cases := []struct {
		raw  string
		want string
	}{
		{"ssh://server.com/myproject", "myproject"},
		{"ssh://server.com/myproject.git", "myproject"},
		{"whatisthisurleven", "whatisthisurleven"},
		{nul, "␀"},
		{"/" + nul + "/", "␀"},
		{"./../../../../../" + nul + "myproject", "␀myproject"},
		{".", "．"},
		{"./myproject", "myproject"},
		{"..", "．．"},
		{"...git", "．．"},
		{"../myproject", "myproject"},
		{"../myproject/..", "．．"},
	}

	for _, c := range cases {
		got := Git(c.raw).DependencyName()
		if got != c.want {
			t.Errorf("DependencyName(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestRecognizeHosted(t *testing.T) {
	cases := []struct {
		raw        string
		wantOwner  string
		wantName   string
		wantOK     bool
		wantErrStr string
	}{
		{"https://github.com/utica-dep/utica", "utica-dep", "utica", true, ""},
		{"https://github.com/utica-dep/utica.git", "utica-dep", "utica", true, ""},
		{"ssh://git@github.com:utica-dep/utica.git", "utica-dep", "utica", true, ""},
		{"git@github.com:utica-dep/utica.git", "utica-dep", "utica", true, ""},
		{"https://gitlab.com/owner/repo", "", "", false, ""},
		{"ssh://nobody@github.com:owner/repo", "", "", false, "'git' user"},
	}

	for _, c := range cases {
		id, ok, err := RecognizeHosted(c.raw, nil)
		if c.wantErrStr != "" {
			if err == nil {
				t.Errorf("RecognizeHosted(%q): expected error containing %q, got nil", c.raw, c.wantErrStr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("RecognizeHosted(%q): unexpected error: %v", c.raw, err)
		}
		if ok != c.wantOK {
			t.Fatalf("RecognizeHosted(%q): ok = %v, want %v", c.raw, ok, c.wantOK)
		}
		if !ok {
			continue
		}
		if id.Owner != c.wantOwner || id.Name != c.wantName {
			t.Errorf("RecognizeHosted(%q) = %s/%s, want %s/%s", c.raw, id.Owner, id.Name, c.wantOwner, c.wantName)
		}
	}
}

func TestRecognizeHostedEnterprise(t *testing.T) {
	id, ok, err := RecognizeHosted("https://git.example.com/owner/repo", []string{"git.example.com"})
	if err != nil || !ok {
		t.Fatalf("RecognizeHosted: ok=%v err=%v", ok, err)
	}
	if id.Host.Kind != HostEnterprise || id.Host.BaseURL != "https://git.example.com" {
		t.Errorf("unexpected host: %+v", id.Host)
	}
}

func TestIdEqual(t *testing.T) {
	a := Hosted(Host{Kind: HostPrimary}, "owner", "repo")
	b := Hosted(Host{Kind: HostPrimary}, "owner", "repo")
	if !a.Equal(b) {
		t.Errorf("expected equal Hosted ids")
	}

	c := Git("https://example.com/x.git")
	d := Git("https://example.com/x.git/")
	if !c.Equal(d) {
		t.Errorf("expected Git ids to normalize trailing slash and compare equal")
	}

	e := Binary("https://cdn.example.com/a.json", "a.json")
	f := Binary("https://cdn.example.com/a.json", "different-display")
	if !e.Equal(f) {
		t.Errorf("Binary equality must key on resolved URL, not display URL")
	}
}
