package sourcevcs

import (
	"testing"

	"github.com/utica-dep/utica/internal/depid"
)

func TestLooksLikeBranch(t *testing.T) {
	cases := map[string]bool{
		"master":                   true,
		"develop":                  true,
		"abc123":                   true, // too short to be treated as a SHA
		"0123456789abcdef01234567890123456789abcd": false,
		"deadbee":                  false,
	}
	for ref, want := range cases {
		if got := looksLikeBranch(ref); got != want {
			t.Errorf("looksLikeBranch(%q) = %v, want %v", ref, got, want)
		}
	}
}

func TestRemoteURL(t *testing.T) {
	b := &Backend{}

	hosted := depid.Hosted(depid.Host{Kind: depid.HostPrimary}, "owner", "repo")
	if got, want := b.remoteURL(hosted), "https://github.com/owner/repo.git"; got != want {
		t.Errorf("remoteURL(hosted) = %q, want %q", got, want)
	}

	git := depid.Git("https://example.com/x.git")
	if got, want := b.remoteURL(git), "https://example.com/x.git"; got != want {
		t.Errorf("remoteURL(git) = %q, want %q", got, want)
	}

	enterprise := depid.Hosted(depid.Host{Kind: depid.HostEnterprise, BaseURL: "https://ghe.example.com"}, "o", "n")
	if got, want := b.remoteURL(enterprise), "https://ghe.example.com/o/n.git"; got != want {
		t.Errorf("remoteURL(enterprise) = %q, want %q", got, want)
	}
}
