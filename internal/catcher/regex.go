package catcher

// NewRegex builds a catcher whose blocks open on a line matching start and
// close on a line matching end. Both patterns search anywhere in the line
// unless they anchor themselves. An empty end reuses start, so every match is
// a one-line block.
func NewRegex(start, end string, opts Options) (*Machine, error) {
	startPred, err := Regexp(start)
	if err != nil {
		return nil, err
	}

	endPred := startPred
	if end != "" {
		if endPred, err = Regexp(end); err != nil {
			return nil, err
		}
	}

	if opts.Name == "" {
		opts.Name = "regex"
	}
	return New(startPred, endPred, opts)
}
