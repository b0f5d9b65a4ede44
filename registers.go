// registers.go - Centralized I/O register address map for pdp11go

/*
pdp11go - a software PDP-11/40 sufficient to boot Version 6 Unix

(c) 2024 - 2026 the pdp11go authors
https://github.com/otley-labs/pdp11go

License: GPLv3 or later
*/

/*
registers.go - Master I/O Register Address Map

This file is a centralized reference for every memory-mapped I/O address
the bus recognizes. Individual devices define their own detailed register
constants in their own files (tty.go, rk05.go, mmu.go); this table exists so
a reader can find "what lives at 777562" without grepping five files.

MEMORY MAP OVERVIEW (all addresses octal, physical, 18-bit)
============================================================

Address Range         Device                   File
------------------------------------------------------------------
000000-757776          RAM (below 760000)        bus.go
777546                  LKS (line clock status)   clock.go
777560                  TKS (keyboard status)     tty.go
777562                  TKB (keyboard buffer)      tty.go
777564                  TPS (printer status)       tty.go
777566                  TPB (printer buffer)       tty.go
777570                  fixed constant 173030      bus.go
772300-772357           kernel MMU PAR/PDR         mmu.go
777600-777657           user MMU PAR/PDR           mmu.go
777572                  SR0 (MMU fault status)     mmu.go
777576                  SR2 (MMU fault PC)         mmu.go
777776                  PSW                        cpu.go
777400                  RKDS (RK05 drive status)   rk05.go
777402                  RKER (RK05 error)          rk05.go
777404                  RKCS (RK05 control/status) rk05.go
777406                  RKWC (RK05 word count)     rk05.go
777410                  RKBA (RK05 bus address)    rk05.go
777412                  RKDA (RK05 disk address)   rk05.go

INTERRUPT VECTORS (octal) - see interrupt.go
============================================================

004 BUS   010 INVAL  014 BPT    020 IOT   030 EMT
034 TRAP  060 TTYIN  064 TTYOUT 100 CLOCK 220 RK
250 MMU-FAULT
*/

package main
