package boq

// FormatError reports a file the parser refuses to open: an unsupported
// or legacy extension. The user fixes it by re-uploading in a supported
// format.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string { return e.Msg }

// StructuralError reports a file the parser opened but could not make
// sense of: a missing required column, an empty sheet, a corrupted
// container.
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string { return e.Msg }
