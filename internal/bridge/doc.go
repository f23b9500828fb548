// Package bridge marshals calls into a toolchain module and decodes the
// records it leaves in linear memory.
//
// Every function here is synchronous with respect to the module. A Region
// is only meaningful between the export call that produced it and the next
// call into the module, so decoders copy everything they read into Go
// strings and integers before returning.
package bridge
