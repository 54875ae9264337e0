package catcher

// NewText builds a catcher that matches lines containing substr.
// Every match is a one-line block. An empty substr matches every line, which
// makes a catch-all pass-through, or with Muffle a catch-all suppressor.
func NewText(substr string, opts Options) (*Machine, error) {
	if opts.Name == "" {
		opts.Name = "text"
	}
	p := Text(substr)
	return New(p, p, opts)
}
