// Package classify determines what an image file actually is, regardless of
// its extension.
//
// Detection reads magic bytes, never the file name: a .png full of WebP data
// is reported as WebP and renamed to match. Classification also decides
// conversion eligibility -- only plain JPEG and PNG go to the encoder;
// animated and already-next-gen formats (GIF, APNG, AVIF, JPEG XL) are
// excluded no matter what the file is called.
package classify
