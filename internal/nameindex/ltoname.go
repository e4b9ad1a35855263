package nameindex

import "regexp"

// ltoSuffixPatterns matches the mangling suffixes LTO backends append to
// private symbols that would otherwise collide across translation units.
// The common name is whatever precedes the longest matching suffix.
var ltoSuffixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.llvm\.\d+$`),
	regexp.MustCompile(`\.lto_priv\.\d+$`),
	regexp.MustCompile(`\.constprop\.\d+$`),
	regexp.MustCompile(`\.part\.\d+$`),
}

// LTOCommonName returns the longest prefix of name preceding a recognized
// LTO mangling suffix, or ("", false) if name carries none.
func LTOCommonName(name string) (string, bool) {
	best := -1
	for _, re := range ltoSuffixPatterns {
		if loc := re.FindStringIndex(name); loc != nil {
			if best == -1 || loc[0] < best {
				best = loc[0]
			}
		}
	}
	if best == -1 {
		return "", false
	}
	return name[:best], true
}
