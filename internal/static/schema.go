package static

// Manifest is the root structure of static.yaml.
//
//	files:
//	  frontend.html:
//	    path: ./web/frontend.html
//	    headers:
//	      Content-Type: text/html; charset=utf-8
type Manifest struct {
	Files map[string]FileEntry `yaml:"files"`
}

// FileEntry points at one asset on disk and the headers it is served with.
type FileEntry struct {
	Path    string            `yaml:"path"`
	Headers map[string]string `yaml:"headers"`
}

// Asset is a loaded file, ready to serve.
type Asset struct {
	Name    string
	Headers map[string]string
	Body    []byte
}
