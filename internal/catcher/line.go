package catcher

// NewLine builds a catcher that matches lines exactly equal to target.
// Every match is a one-line block and the default output is the line itself.
func NewLine(target string, opts Options) (*Machine, error) {
	if opts.Name == "" {
		opts.Name = "line"
	}
	p := Line(target)
	return New(p, p, opts)
}
