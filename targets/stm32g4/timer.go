//go:build stm32g4

package main

import (
	"device/arm"
	"runtime/interrupt"

	"gouptime/core"
)

// LPTIM1 global interrupt line on STM32G4
const lptim1IRQ = 49

// lptimTimer drives LPTIM1 from HSI16 /16: 1MHz ticks, 1ms period
type lptimTimer struct {
	irq interrupt.Interrupt
}

func newLPTIMTimer() *lptimTimer {
	t := &lptimTimer{}
	t.irq = interrupt.New(lptim1IRQ, func(interrupt.Interrupt) {
		core.HandleTick()
	})
	return t
}

func (t *lptimTimer) EnableOscillator() {
	rccCRReg.SetBits(rccCRHSION)
}

func (t *lptimTimer) OscillatorReady() bool {
	return rccCRReg.HasBits(rccCRHSIRDY)
}

func (t *lptimTimer) ClockGate(enabled bool) {
	if enabled {
		selectKernelClock(KernelHSI16)
		rccAPBENRReg.SetBits(rccAPB1LPTIM1)
		return
	}
	rccAPBENRReg.ClearBits(rccAPB1LPTIM1)
}

func (t *lptimTimer) PulseReset() {
	rccAPBRSTReg.SetBits(rccAPB1LPTIM1)
	rccAPBRSTReg.ClearBits(rccAPB1LPTIM1)
}

func (t *lptimTimer) Configure() {
	// CFGR and IER are only writable while the timer is disabled
	lptim1.SetPrescaler(PrescDiv16)
	lptim1.IER.Set(lptimIERARRMIE)
	lptim1.CR.Set(lptimCREnable)
	lptim1.SetPeriod(core.PeriodTicks)
	lptim1.CR.SetBits(lptimCRCntStrt)
}

func (t *lptimTimer) SetCounting(enabled bool) {
	if enabled {
		lptim1.CR.SetBits(lptimCREnable)
		return
	}
	lptim1.CR.ClearBits(lptimCREnable)
}

func (t *lptimTimer) StartCount() {
	lptim1.CR.SetBits(lptimCRCntStrt)
}

func (t *lptimTimer) Count() uint32 {
	return lptim1.Counter()
}

func (t *lptimTimer) PeriodPending() bool {
	return lptim1.ISR.HasBits(lptimISRARRM)
}

func (t *lptimTimer) AckInterrupt() {
	lptim1.ICR.Set(lptimICRARRMCF | lptimICRCMPMCF)
}

func (t *lptimTimer) EnableIRQ() {
	t.irq.Enable()
}

func (t *lptimTimer) DisableIRQ() {
	arm.DisableIRQ(lptim1IRQ)
}
