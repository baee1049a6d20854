// Package serialization saves and loads trained networks in the .snet
// checkpoint format.
//
//	[0x00-0x03] magic "SNET"
//	[0x04-0x07] format version (uint32 LE)
//	[0x08-0x0B] flags (uint32 LE)
//	[0x0C-0x0F] reserved
//	[0x10-0x17] JSON header size (uint64 LE)
//	[0x18-0x1F] data section size (uint64 LE)
//	[0x20-0x3F] SHA-256 of the data section
//	[0x40-    ] JSON header, zero padded to a multiple of 64 bytes
//	[   ...   ] data section: raw little-endian tensors
//
// The JSON header lists the layers (kind, sizes, storage) and every tensor
// with its dtype, shape, offset and size. A dense weight matrix of layer i is
// stored as "i.W"; a CSR weight matrix as the three tensors "i.W.offsets",
// "i.W.columns" (int64) and "i.W.values". Loading a CSR matrix restores its
// support exactly.
//
// Example:
//
//	if _, err := serialization.Save("model.snet", model, serialization.Meta{}); err != nil {
//	    return err
//	}
//	loaded, header, err := serialization.Load[float32]("model.snet")
package serialization
