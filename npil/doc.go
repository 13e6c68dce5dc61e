/*
Package npil holds the types shared by every neuropil package: label volumes, element data types,
serialization with optional compression, command-line argument handling and the package-level
leveled logger.
*/
package npil
