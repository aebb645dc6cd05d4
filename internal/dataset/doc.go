// Package dataset prepares detector training data from annotated radiographs.
//
// Two batch stages run one after the other:
//
//   - Converter reads the annotation table, decodes every patient's source
//     radiograph, writes a normalized PNG and, for positive patients, a label
//     file with one normalized box per line.
//   - Splitter samples a capped number of positive and negative patients,
//     shuffles them and moves their image and label files into train and val
//     subdirectories.
//
// # Label Format
//
// Label lines follow the YOLO convention: "0 cx cy w h", where the class id
// is always 0 and the four values are fractions of the image width and height
// printed with six decimals.
//
// # Error Handling
//
// A patient whose source file is absent is skipped without comment; that is
// normal for partial downloads of the source archive. Decode or write
// failures are logged with the patient id and counted, and the batch moves
// on. Only a missing annotation table is fatal.
package dataset
