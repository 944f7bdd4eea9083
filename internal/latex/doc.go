// Package latex turns a content tree into a LaTeX document source.
//
// The package covers the pure text stages of an export:
//   - Escape makes author text safe for LaTeX
//   - Expand turns the bracketed rich-markup tokens into LaTeX blocks
//   - Generate walks the section tree and emits the full document
//   - Sanitize removes preamble directives the converter cannot handle
//
// Nothing here performs I/O. Remote images referenced by figures are
// resolved later by the resources package, and conversion to DOCX or PDF
// is handled by the root texport package.
package latex
