package gdb

import (
	"fmt"
	"strings"

	"github.com/rvemu/rvemu/rvgo/riscv"
)

var abiNames = [riscv.RegCount]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"fp", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// targetXML describes the register layout served to GDB through qXfer.
var targetXML = buildTargetXML()

func buildTargetXML() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0"?>
<!DOCTYPE target SYSTEM "gdb-target.dtd">
<target version="1.0">
<architecture>riscv:rv32</architecture>
<feature name="org.gnu.gdb.riscv.cpu">
`)
	for i, name := range abiNames {
		typ := "int"
		switch name {
		case "sp", "fp":
			typ = "data_ptr"
		case "ra":
			typ = "code_ptr"
		}
		fmt.Fprintf(&sb, "  <reg name=\"%s\" bitsize=\"32\" type=\"%s\" regnum=\"%d\"/>\n", name, typ, i)
	}
	fmt.Fprintf(&sb, "  <reg name=\"pc\" bitsize=\"32\" type=\"code_ptr\" regnum=\"%d\"/>\n", riscv.RegPC)
	sb.WriteString("</feature>\n</target>\n")
	return sb.String()
}
