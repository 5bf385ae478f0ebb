package standalone

import (
	"log"

	"softspi/core"
	"softspi/protocol"
)

// Rig is a complete in-process engine pair: master and slave sharing one
// pad bus, their register blocks, the three clock domains, and a command
// bridge exposing the registers over the wire protocol.
//
// NewRig wires everything but starts nothing; Start launches the domains.
// The register blocks are live the whole time, exactly as if they were
// memory mapped, and stay safe to touch while the domains run.
type Rig struct {
	Config *Config

	Pads       *core.Pads
	MasterRegs *core.MasterRegs
	SlaveRegs  *core.SlaveRegs
	Master     *core.Master
	Slave      *core.Slave
	Bridge     *core.CommandBridge

	out     *protocol.ScratchOutput
	domains []*core.Domain
}

// NewRig builds a rig from the config.
func NewRig(cfg *Config) *Rig {
	r := &Rig{
		Config:     cfg,
		Pads:       core.NewPads(),
		MasterRegs: core.NewMasterRegs(),
		SlaveRegs:  core.NewSlaveRegs(),
		out:        protocol.NewScratchOutput(),
	}
	r.Master = core.NewMaster(r.MasterRegs, r.Pads)
	r.Slave = core.NewSlave(r.SlaveRegs, r.Pads)
	r.Pads.OnClockEdge(r.Slave.ClockEdge)

	r.Bridge = core.NewCommandBridge(r.MasterRegs, r.SlaveRegs, r.out)
	r.Bridge.Dict().AddConstant("HOST_HZ", cfg.HostHz)
	r.Bridge.Dict().AddConstant("MASTER_HZ", cfg.MasterHz)
	r.Bridge.Dict().AddConstant("SLAVE_HZ", cfg.SlaveHz)

	if cfg.Trace {
		r.Pads.OnEvent(func(line core.Line, level bool) {
			v := 0
			if level {
				v = 1
			}
			log.Printf("[bus] %s=%d", line, v)
		})
	}

	return r
}

// Start launches the three clock domains: host registers, master engine,
// slave engine.
func (r *Rig) Start() {
	if r.Config.Trace {
		core.SetDebugWriter(func(s string) { log.Print(s) })
		core.SetDebugEnabled(true)
	}

	r.domains = []*core.Domain{
		core.NewDomain("host", period(r.Config.HostHz), r.tickHost),
		core.NewDomain("master", period(r.Config.MasterHz), r.Master.Tick),
		core.NewDomain("slave", period(r.Config.SlaveHz), r.Slave.Tick),
	}
}

// tickHost is the host domain: both register blocks advance together.
func (r *Rig) tickHost() {
	r.MasterRegs.Tick()
	r.SlaveRegs.Tick()
}

// Stop halts the clock domains. Start may be called again afterwards.
func (r *Rig) Stop() {
	for i := len(r.domains) - 1; i >= 0; i-- {
		r.domains[i].Stop()
	}
	r.domains = nil

	if r.Config.Trace {
		core.DumpFrameRing()
	}
}
