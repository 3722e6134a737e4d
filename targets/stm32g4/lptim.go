//go:build stm32g4

package main

import (
	"runtime/volatile"
	"unsafe"
)

// STM32G4 RCC and LPTIM1 memory map (RM0440)
const (
	rccBase   = 0x40021000
	rccCR     = rccBase + 0x00
	rccAPBRST = rccBase + 0x38 // APB1RSTR1
	rccAPBENR = rccBase + 0x58 // APB1ENR1
	rccCCIPR  = rccBase + 0x88

	lptim1Base = 0x40007C00
)

// RCC bits used by the uptime timer
const (
	rccCRHSION         = 1 << 8
	rccCRHSIRDY        = 1 << 10
	rccAPB1LPTIM1      = 1 << 31 // same position in APB1RSTR1 and APB1ENR1
	rccCCIPRLPTIM1Pos  = 18
	rccCCIPRLPTIM1Mask = 0x3
)

// LPTIM register bits
const (
	lptimISRCMPM   = 1 << 0
	lptimISRARRM   = 1 << 1
	lptimICRCMPMCF = 1 << 0
	lptimICRARRMCF = 1 << 1
	lptimIERARRMIE = 1 << 1
	lptimCREnable  = 1 << 0
	lptimCRCntStrt = 1 << 2

	lptimCFGRPrescPos  = 9
	lptimCFGRPrescMask = 0x7
)

// Prescaler is the LPTIM clock divider. Only powers of two from 1 to 128
// exist in hardware, so only those have names.
type Prescaler uint32

const (
	PrescDiv1 Prescaler = iota
	PrescDiv2
	PrescDiv4
	PrescDiv8
	PrescDiv16
	PrescDiv32
	PrescDiv64
	PrescDiv128
)

// KernelClock is the LPTIM1 kernel clock selection in RCC_CCIPR
type KernelClock uint32

const (
	KernelPCLK KernelClock = iota
	KernelLSI
	KernelHSI16
	KernelLSE
)

// lptimRegs is the LPTIM register block
type lptimRegs struct {
	ISR  volatile.Register32
	ICR  volatile.Register32
	IER  volatile.Register32
	CFGR volatile.Register32
	CR   volatile.Register32
	CMP  volatile.Register32
	ARR  volatile.Register32
	CNT  volatile.Register32
}

var (
	lptim1 = (*lptimRegs)(unsafe.Pointer(uintptr(lptim1Base)))

	rccCRReg     = (*volatile.Register32)(unsafe.Pointer(uintptr(rccCR)))
	rccAPBRSTReg = (*volatile.Register32)(unsafe.Pointer(uintptr(rccAPBRST)))
	rccAPBENRReg = (*volatile.Register32)(unsafe.Pointer(uintptr(rccAPBENR)))
	rccCCIPRReg  = (*volatile.Register32)(unsafe.Pointer(uintptr(rccCCIPR)))
)

// SetPrescaler writes CFGR.PRESC. CFGR may only be written while disabled.
func (r *lptimRegs) SetPrescaler(p Prescaler) {
	r.CFGR.ReplaceBits(uint32(p), lptimCFGRPrescMask, lptimCFGRPrescPos)
}

// SetPeriod writes the auto-reload register for a period of ticks counts.
// ARR may only be written while enabled.
func (r *lptimRegs) SetPeriod(ticks uint32) {
	r.ARR.Set((ticks - 1) & 0xFFFF)
}

// Counter reads CNT. The counter runs on the asynchronous kernel clock, so a
// read is only trusted when two consecutive reads agree.
func (r *lptimRegs) Counter() uint32 {
	for {
		a := r.CNT.Get()
		b := r.CNT.Get()
		if a == b {
			return a
		}
	}
}

func (r *lptimRegs) Enabled() bool {
	return r.CR.HasBits(lptimCREnable)
}

func selectKernelClock(k KernelClock) {
	rccCCIPRReg.ReplaceBits(uint32(k), rccCCIPRLPTIM1Mask, rccCCIPRLPTIM1Pos)
}
