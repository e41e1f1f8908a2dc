// Package frame implements the RESP2 subset spoken by minikv.
//
// A Frame is one self-delimiting protocol message. The package provides
// three layers:
//
//   - frame.go: the closed set of frame kinds (Simple, Error, Integer,
//     Bulk, Null, Array)
//   - codec.go: Check/Parse over a byte window and Append for the
//     write side
//   - decoder.go: Decoder, which accumulates bytes from an io.Reader and
//     hands out complete frames, keeping partial data buffered across reads
//
// Wire grammar:
//
//	Simple   +<text>\r\n
//	Error    -<text>\r\n
//	Integer  :<decimal>\r\n
//	Bulk     $<len>\r\n<bytes>\r\n
//	Null     $-1\r\n
//	Array    *<n>\r\n<frame>...   (decode only)
//
// Arrays are how clients send requests, so the decoder accepts them. No
// reply ever needs one and encoding an Array returns ErrUnsupported.
package frame
