package depid

import (
	"fmt"
	"net/url"
	"regexp"
)

// PrimaryHostName is the well-known public hosting service Utica recognizes
// without any enterprise base-URL configuration.
const PrimaryHostName = "github.com"

// Recognized forms for a hosted-VCS URL (spec §4.1/§6):
//
//	ssh://git@<host>:<owner>/<name>(.git)?
//	https://<host>/<owner>/<name>(.git)?
//	git@<host>:<owner>/<name>(.git)?
var (
	sshFormPattern   = regexp.MustCompile(`^ssh://([^@]+)@([^/:]+):([^/]+)/([^/]+?)(?:\.git)?/?$`)
	httpsFormPattern = regexp.MustCompile(`^https://([^/:]+)/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	scpFormPattern   = regexp.MustCompile(`^([^@]+)@([^/:]+):([^/]+)/([^/]+?)(?:\.git)?/?$`)
)

// RecognizeHosted attempts to canonicalize rawURL into a Hosted DependencyId
// against the primary host and any configured enterprise base URLs. It
// reports ok == false when rawURL does not match one of the recognized
// forms, in which case the caller should fall back to a plain Git Id.
func RecognizeHosted(rawURL string, enterpriseHosts []string) (id Id, ok bool, err error) {
	if m := sshFormPattern.FindStringSubmatch(rawURL); m != nil {
		if m[1] != "git" {
			return Id{}, false, fmt.Errorf("hosted ssh URLs must be accessed via the 'git' user; %q was provided", m[1])
		}
		return hostedFromParts(m[2], m[3], m[4], enterpriseHosts)
	}
	if m := httpsFormPattern.FindStringSubmatch(rawURL); m != nil {
		return hostedFromParts(m[1], m[2], m[3], enterpriseHosts)
	}
	if m := scpFormPattern.FindStringSubmatch(rawURL); m != nil {
		if m[1] != "git" {
			return Id{}, false, fmt.Errorf("hosted scp-style URLs must be accessed via the 'git' user; %q was provided", m[1])
		}
		return hostedFromParts(m[2], m[3], m[4], enterpriseHosts)
	}
	return Id{}, false, nil
}

// hostedFromParts reports ok == false when host matches neither the primary
// host nor a configured enterprise host, so the caller falls back to Git.
func hostedFromParts(host, owner, name string, enterpriseHosts []string) (Id, bool, error) {
	for _, eh := range enterpriseHosts {
		if eh == host {
			return Hosted(Host{Kind: HostEnterprise, BaseURL: baseURLFor(eh)}, owner, name), true, nil
		}
	}
	if host == PrimaryHostName {
		return Hosted(Host{Kind: HostPrimary}, owner, name), true, nil
	}
	return Id{}, false, nil
}

func baseURLFor(host string) string {
	u := url.URL{Scheme: "https", Host: host}
	return u.String()
}
