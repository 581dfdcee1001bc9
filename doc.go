// Package uhdr implements the core of an UltraHDR image pipeline in pure Go.
//
// An UltraHDR image is an SDR base picture plus a small monochrome gain map
// and a handful of scalar parameters that together reconstruct the HDR
// picture on capable displays. The package generates gain maps from SDR+HDR
// pixel-buffer pairs, applies gain maps to recover HDR pixels, tone-maps
// 10-bit HDR input to an SDR surrogate, edits base/gain-map pairs
// geometrically, and assembles/parses the JPEG/R container (MPF + XMP +
// ISO 21496-1 metadata). Base codecs are pluggable; the built-in JPEG
// collaborator uses the standard image/jpeg package.
package uhdr
