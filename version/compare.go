package version

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Compare compares two semantic versions, with or without a leading "v". It returns 1 if a is newer,
// -1 if b is newer and 0 if both are equal. A prerelease ("1.2.0-rc.1") is older than its release;
// build metadata is ignored.
func Compare(a, b string) (int, error) {
	av, err := parse(a)
	if err != nil {
		return 0, err
	}

	bv, err := parse(b)
	if err != nil {
		return 0, err
	}

	for _, pair := range []lo.Tuple2[int, int]{
		{A: av.major, B: bv.major},
		{A: av.minor, B: bv.minor},
		{A: av.patch, B: bv.patch},
	} {
		if pair.A > pair.B {
			return 1, nil
		}

		if pair.A < pair.B {
			return -1, nil
		}
	}

	switch {
	case av.prerelease == bv.prerelease:
		return 0, nil
	case av.prerelease == "":
		return 1, nil
	case bv.prerelease == "":
		return -1, nil
	default:
		return strings.Compare(av.prerelease, bv.prerelease), nil
	}
}

type semver struct {
	major, minor, patch int
	prerelease          string
}

func parse(s string) (semver, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	s, _, _ = strings.Cut(s, "+")
	core, prerelease, _ := strings.Cut(s, "-")

	v := semver{prerelease: prerelease}
	var rest string
	n, _ := fmt.Sscanf(core, "%d.%d.%d%s", &v.major, &v.minor, &v.patch, &rest)
	if n < 3 || rest != "" {
		return semver{}, fmt.Errorf("invalid version %q", s)
	}
	return v, nil
}
