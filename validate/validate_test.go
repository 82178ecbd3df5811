package validate

import (
	"strings"
	"testing"
)

func TestGitHubUsername_Valid(t *testing.T) {
	for _, name := range []string{"octocat", "a", "a-b", "user123", "A1-b2-C3"} {
		if res := GitHubUsername(name); !res.OK {
			t.Errorf("%q: expected valid, got %q", name, res.Message)
		}
	}
}

func TestGitHubUsername_Invalid(t *testing.T) {
	// WHAT: Empty, overlong, and malformed handles are rejected.
	// WHY: An invalid handle must fail before any network round trip.
	cases := []string{
		"",
		"   ",
		"-leading",
		"trailing-",
		"double--hyphen",
		"has space",
		"bang!",
		strings.Repeat("a", MaxUsernameLen+1),
	}
	for _, name := range cases {
		res := GitHubUsername(name)
		if res.OK {
			t.Errorf("%q: expected invalid", name)
		}
		if res.Message == "" {
			t.Errorf("%q: invalid result must carry a message", name)
		}
	}
}

func TestRepoName_CharsetViolation(t *testing.T) {
	// WHAT: Space and '!' are outside the repo-name charset.
	res := RepoName("my repo!")
	if res.OK {
		t.Fatal("expected invalid")
	}
	if !strings.Contains(res.Message, "alphanumeric") {
		t.Errorf("message should name the allowed charset, got %q", res.Message)
	}
}

func TestRepoName_Valid(t *testing.T) {
	for _, name := range []string{"repo", "my-repo", "my_repo", "my.repo", "Repo123"} {
		if res := RepoName(name); !res.OK {
			t.Errorf("%q: expected valid, got %q", name, res.Message)
		}
	}
}

func TestProjectName_Length(t *testing.T) {
	if res := ProjectName(strings.Repeat("x", MaxProjectNameLen)); !res.OK {
		t.Errorf("at limit: expected valid, got %q", res.Message)
	}
	if res := ProjectName(strings.Repeat("x", MaxProjectNameLen+1)); res.OK {
		t.Error("over limit: expected invalid")
	}
}

func TestDescription_EmptyIsValid(t *testing.T) {
	// WHAT: Description is optional, so empty passes.
	if res := Description(""); !res.OK {
		t.Errorf("expected valid, got %q", res.Message)
	}
	if res := Description(strings.Repeat("x", MaxDescriptionLen+1)); res.OK {
		t.Error("over limit: expected invalid")
	}
}

func TestHexColor(t *testing.T) {
	valid := []string{"#fff", "#FFF", "#10192a", "#3B82F6"}
	for _, c := range valid {
		if res := HexColor(c); !res.OK {
			t.Errorf("%q: expected valid, got %q", c, res.Message)
		}
	}
	// WHAT: Named colors and malformed hex are rejected.
	// WHY: Only hex values round-trip safely through CSS custom properties
	// and the persistence layer.
	invalid := []string{"", "red", "fff", "#ff", "#ffff", "#gggggg", "#12345"}
	for _, c := range invalid {
		if res := HexColor(c); res.OK {
			t.Errorf("%q: expected invalid", c)
		}
	}
}

func TestOverlayOpacity(t *testing.T) {
	for _, v := range []float64{0, 0.5, 1} {
		if res := OverlayOpacity(v); !res.OK {
			t.Errorf("%v: expected valid", v)
		}
	}
	for _, v := range []float64{-0.1, 1.1, 42} {
		if res := OverlayOpacity(v); res.OK {
			t.Errorf("%v: expected invalid", v)
		}
	}
}

func TestImageFile(t *testing.T) {
	if res := ImageFile("image/png", 1024); !res.OK {
		t.Errorf("png 1KB: expected valid, got %q", res.Message)
	}
	if res := ImageFile("application/pdf", 1024); res.OK {
		t.Error("pdf: expected invalid")
	}
	if res := ImageFile("image/png", MaxImageBytes+1); res.OK {
		t.Error("oversize: expected invalid")
	}
	if res := ImageFile("image/png", 0); res.OK {
		t.Error("empty file: expected invalid")
	}
}
