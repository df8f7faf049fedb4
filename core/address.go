package core

import (
	"fmt"
	"math/bits"
)

// PhysicalAddress is an unsigned 64-bit DRAM/HBM address, or (when produced
// by EncodePIMHeader) a synthetic bit-field the DRAM simulator decodes into
// a PIM command. The core never interprets these bits itself beyond
// encode/decode on AddressMap.
type PhysicalAddress uint64

// AddressMap encodes and decodes PhysicalAddress bit layouts. From the LSB:
// column bits, intra-channel column-group bits (4 bits, 16 groups), channel
// bits, bank bits, bank-group bits, rank bits, then row bits.
type AddressMap struct {
	DRAMReqSize    uint64
	DRAMChannels   uint64
	DRAMBanksPerCh uint64
	DRAMPageSize   uint64
	Alignment      uint64

	channelMask   uint64
	channelOffset uint64
}

// NewAddressMap validates geometry and caches the derived channel fields.
// Channels and banks must be powers of two so masking works; this is a
// configuration error, not a fatal runtime assertion.
func NewAddressMap(dramReqSize, dramChannels, dramBanksPerCh, dramPageSize uint64) (*AddressMap, error) {
	if !isPowerOfTwo(dramChannels) {
		return nil, fmt.Errorf("address map: dram_channels must be a power of two, got %d", dramChannels)
	}
	if !isPowerOfTwo(dramBanksPerCh) {
		return nil, fmt.Errorf("address map: dram_banks_per_ch must be a power of two, got %d", dramBanksPerCh)
	}
	if dramReqSize == 0 {
		return nil, fmt.Errorf("address map: dram_req_size must be > 0")
	}
	return &AddressMap{
		DRAMReqSize:    dramReqSize,
		DRAMChannels:   dramChannels,
		DRAMBanksPerCh: dramBanksPerCh,
		DRAMPageSize:   dramPageSize,
		Alignment:      dramReqSize,
		channelMask:    dramChannels - 1,
		channelOffset:  uint64(bits.Len64(dramReqSize-1)) + 4,
	}, nil
}

// Align rounds addr down to the preceding Alignment boundary.
func (m *AddressMap) Align(addr uint64) uint64 {
	return addr - (addr % m.Alignment)
}

// Encode packs (channel, bank, row, col) into a PhysicalAddress. Column bits
// occupy the LSBs below the 4 intra-channel column-group bits; channel bits
// follow, then bank and row. This core does not model bank-group or rank
// splitting independently of bank — both collapse into the bank field here,
// matching the level of detail the lowering layer actually consumes.
func (m *AddressMap) Encode(channel, bank, row, col uint64) PhysicalAddress {
	addr := col & ((uint64(1) << (m.channelOffset - 4)) - 1)
	addr |= (channel & m.channelMask) << m.channelOffset
	bankBits := uint64(bits.Len64(m.DRAMBanksPerCh - 1))
	addr |= (bank) << (m.channelOffset + uint64(bits.Len64(m.DRAMChannels-1)))
	addr |= (row) << (m.channelOffset + uint64(bits.Len64(m.DRAMChannels-1)) + bankBits)
	return PhysicalAddress(addr)
}

// DecodeChannel extracts the channel field from an address encoded by Encode.
func (m *AddressMap) DecodeChannel(addr PhysicalAddress) uint64 {
	return (uint64(addr) >> m.channelOffset) & m.channelMask
}

// EncodePIMHeader builds the synthetic PIM-command address carrying
// (channel, row, is_gwrite, num_comps, num_readres). Only the DRAM simulator
// decodes it; the core treats it as an opaque bit-field passed through
// Instruction.SrcAddrs.
func (m *AddressMap) EncodePIMHeader(channel, row uint64, isGWrite bool, numComps, numReadres uint32) PhysicalAddress {
	var gw uint64
	if isGWrite {
		gw = 1
	}
	addr := channel & m.channelMask
	addr |= (row) << 8
	addr |= gw << 40
	addr |= uint64(numComps) << 41
	addr |= uint64(numReadres) << 57
	return PhysicalAddress(addr)
}

// EncodePIMCompsReadres builds the opaque PIM address passed alongside
// PIM_COMP / PIM_COMPS_READRES instructions, carrying (channel, row,
// num_comps) plus a fused flag distinguishing the two opcodes.
func (m *AddressMap) EncodePIMCompsReadres(channel, row uint64, numComps uint32, fused bool) PhysicalAddress {
	var f uint64
	if fused {
		f = 1
	}
	addr := channel & m.channelMask
	addr |= row << 8
	addr |= uint64(numComps) << 40
	addr |= f << 57
	return PhysicalAddress(addr)
}
