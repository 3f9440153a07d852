package classify

import (
	"path/filepath"
	"strings"
)

// Tags for files without a recognised language.
const (
	LanguageUnknown = "unknown"
	LanguageBinary  = "binary"
)

// Language returns a best-effort language tag for rel from its file name or
// extension, or LanguageUnknown.
func Language(rel string) string {
	base := filepath.Base(rel)
	if lang, ok := specialFilenames[base]; ok {
		return lang
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")
	if ext == "" {
		return LanguageUnknown
	}
	if lang, ok := extensions[ext]; ok {
		return lang
	}
	return LanguageUnknown
}

// GuessLanguage is Language for files whose content was not inspected.
func GuessLanguage(rel string) string {
	if IsBinaryExtension(rel) {
		return LanguageBinary
	}
	return Language(rel)
}

var specialFilenames = map[string]string{
	"Dockerfile":     "dockerfile",
	"dockerfile":     "dockerfile",
	"Containerfile":  "dockerfile",
	"containerfile":  "dockerfile",
	"Makefile":       "makefile",
	"makefile":       "makefile",
	"GNUmakefile":    "makefile",
	"Rakefile":       "ruby",
	"rakefile":       "ruby",
	"Gemfile":        "ruby",
	"gemfile":        "ruby",
	"Podfile":        "ruby",
	"podfile":        "ruby",
	"Vagrantfile":    "ruby",
	"CMakeLists.txt": "cmake",
	"go.mod":         "gomod",
	"go.sum":         "gosum",
	".env":           "dotenv",
	".gitignore":     "ignore",
	".dockerignore":  "ignore",
	".flattenignore": "ignore",
	".editorconfig":  "ini",
	".npmrc":         "ini",
	".gitconfig":     "ini",
	".gitattributes": "gitattributes",
	".eslintrc":      "json",
	".prettierrc":    "json",
	".babelrc":       "json",
	".vimrc":         "vim",
	".gvimrc":        "vim",
	".ideavimrc":     "vim",
	".htaccess":      "apache",
	"configure":      "shell",
	"configure.ac":   "m4",
	"configure.in":   "m4",
	"README":         "text",
	"LICENSE":        "text",
	"LICENCE":        "text",
	"CONTRIBUTING":   "text",
	"CHANGELOG":      "text",
	"AUTHORS":        "text",
	"PATENTS":        "text",
	"NOTICE":         "text",
}

var extensions = map[string]string{
	// programming languages
	"go": "go", "py": "python", "pyi": "python", "js": "javascript", "mjs": "javascript", "cjs": "javascript",
	"jsx": "javascript", "ts": "typescript", "tsx": "typescript", "vue": "vue", "svelte": "svelte",
	"astro": "astro", "rb": "ruby", "php": "php", "java": "java", "rs": "rust", "c": "c", "h": "c",
	"cpp": "cpp", "cc": "cpp", "cxx": "cpp", "hpp": "cpp", "hh": "cpp", "cs": "csharp", "swift": "swift",
	"kt": "kotlin", "kts": "kotlin", "scala": "scala", "r": "r", "m": "objective-c", "f": "fortran",
	"f90": "fortran", "jl": "julia", "lua": "lua", "pl": "perl", "pm": "perl", "t": "perl",
	"asm": "assembly", "s": "assembly", "nim": "nim", "ex": "elixir", "exs": "elixir", "clj": "clojure",
	"lisp": "lisp", "hs": "haskell", "erl": "erlang", "elm": "elm", "dart": "dart", "zig": "zig",
	"coffee": "coffeescript", "groovy": "groovy", "gradle": "groovy", "cabal": "cabal", "sql": "sql",
	"graphql": "graphql", "graphqls": "graphql", "proto": "protobuf", "thrift": "thrift", "prisma": "prisma",
	"dhall": "dhall", "vim": "vim", "nvim": "vim", "applescript": "applescript", "vbs": "vbscript",
	// shells
	"sh": "shell", "bash": "shell", "zsh": "shell", "ksh": "shell", "csh": "shell", "tcsh": "shell",
	"fish": "fish", "ps1": "powershell", "pwsh": "powershell", "bat": "batch", "cmd": "batch", "nu": "nushell",
	// web
	"html": "html", "htm": "html", "css": "css", "scss": "scss", "sass": "sass", "less": "less",
	"styl": "stylus", "pug": "pug", "jade": "pug", "haml": "haml", "slim": "slim", "liquid": "liquid",
	"ejs": "ejs", "hbs": "handlebars", "handlebars": "handlebars", "mustache": "mustache",
	// templates
	"tmpl": "template", "tpl": "template", "j2": "jinja", "jinja": "jinja", "jinja2": "jinja",
	"njk": "nunjucks", "nunjucks": "nunjucks",
	// data and configuration
	"json": "json", "jsonl": "json", "yaml": "yaml", "yml": "yaml", "toml": "toml", "xml": "xml",
	"ini": "ini", "cfg": "ini", "conf": "ini", "config": "ini", "properties": "properties", "env": "dotenv",
	"csv": "csv", "tsv": "tsv", "avsc": "json", "cmake": "cmake", "make": "makefile", "mk": "makefile",
	"dockerfile": "dockerfile", "tf": "terraform", "hcl": "hcl",
	// documentation
	"md": "markdown", "markdown": "markdown", "mdc": "markdown", "rst": "rst", "adoc": "asciidoc",
	"asciidoc": "asciidoc", "tex": "latex", "rdoc": "rdoc", "wiki": "wiki", "txt": "text", "text": "text",
	"rtf": "rtf", "man": "roff", "log": "log", "diff": "diff", "patch": "diff", "po": "gettext", "pot": "gettext",
	// keys and certificates
	"pem": "pem", "crt": "pem", "key": "pem", "pub": "pem", "asc": "pgp", "gpg": "pgp",
}
