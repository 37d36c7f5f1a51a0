package codec

import (
	"path"
	"strings"
)

// Format selects an export representation.
type Format string

const (
	FormatInline   Format = "inline"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts "inline", "markdown" or "md".
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inline", "":
		return FormatInline, true
	case "markdown", "md":
		return FormatMarkdown, true
	}
	return "", false
}

const (
	annotatedMarker  = ".annotated"
	defaultExtension = ".txt"
)

// languageExtensions is ordered; on reverse lookup the first language
// declaring an extension wins.
var languageExtensions = []struct{ lang, ext string }{
	{"mad", ".mad"},
	{"fortran", ".f"},
	{"cobol", ".cob"},
	{"algol", ".alg"},
	{"lisp", ".lisp"},
	{"assembly", ".asm"},
	{"basic", ".bas"},
	{"pascal", ".pas"},
	{"ada", ".adb"},
	{"c", ".c"},
	{"cpp", ".cpp"},
	{"c++", ".cpp"},
	{"csharp", ".cs"},
	{"c#", ".cs"},
	{"go", ".go"},
	{"rust", ".rs"},
	{"java", ".java"},
	{"kotlin", ".kt"},
	{"scala", ".scala"},
	{"javascript", ".js"},
	{"typescript", ".ts"},
	{"python", ".py"},
	{"ruby", ".rb"},
	{"perl", ".pl"},
	{"php", ".php"},
	{"swift", ".swift"},
	{"objective-c", ".m"},
	{"haskell", ".hs"},
	{"ocaml", ".ml"},
	{"scheme", ".scm"},
	{"clojure", ".clj"},
	{"erlang", ".erl"},
	{"elixir", ".ex"},
	{"lua", ".lua"},
	{"r", ".r"},
	{"julia", ".jl"},
	{"shell", ".sh"},
	{"bash", ".sh"},
	{"sql", ".sql"},
	{"html", ".html"},
	{"css", ".css"},
	{"json", ".json"},
	{"yaml", ".yaml"},
	{"xml", ".xml"},
	{"markdown", ".md"},
	{"smalltalk", ".st"},
	{"prolog", ".pro"},
	{"apl", ".apl"},
	{"snobol", ".sno"},
}

var (
	extByLang = func() map[string]string {
		m := make(map[string]string, len(languageExtensions))
		for _, e := range languageExtensions {
			m[e.lang] = e.ext
		}
		return m
	}()
	langByExt = func() map[string]string {
		m := make(map[string]string, len(languageExtensions))
		for _, e := range languageExtensions {
			if _, ok := m[e.ext]; !ok {
				m[e.ext] = e.lang
			}
		}
		return m
	}()
)

// ExtensionFor returns the file extension for a language name, ".txt" when
// the language is unknown.
func ExtensionFor(lang string) string {
	if ext, ok := extByLang[strings.ToLower(strings.TrimSpace(lang))]; ok {
		return ext
	}
	return defaultExtension
}

// LanguageForExtension is the reverse of ExtensionFor. The extension may be
// given with or without its leading dot.
func LanguageForExtension(ext string) (string, bool) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	lang, ok := langByExt[ext]
	return lang, ok
}

// LanguageForPath guesses the language of a workspace file from its name.
func LanguageForPath(p string) string {
	if lang, ok := LanguageForExtension(path.Ext(p)); ok {
		return lang
	}
	return ""
}

// ExportFilename derives the download name for an export of the named file.
// Markdown exports always end in ".md"; inline exports keep the source
// extension or derive one from the language.
func ExportFilename(name, lang string, f Format) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "untitled"
	}
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem, ext = base, ""
	}
	if f == FormatMarkdown {
		return stem + annotatedMarker + ".md"
	}
	if ext == "" {
		ext = ExtensionFor(lang)
	}
	return stem + annotatedMarker + ext
}
