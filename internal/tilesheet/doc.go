// Package tilesheet packs square tile images into fixed-width sprite sheets.
//
// A tilesheet has one index mapping tile names to slots, and one sheet image per
// tile size. Every sheet is Columns tiles wide and grows downwards one row at a
// time as slots are allocated. Resampling happens in linear light so that
// downscaled tiles keep their perceived brightness.
package tilesheet
