// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	gomaxecs "github.com/rdforte/gomaxecs/maxprocs"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/cardinalhq/lakemerge/cmd"
)

func simpleLogger(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
}

func init() {
	time.Local = time.UTC

	setMaxProcs()
	setMemoryLimit()

	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(50)
		_ = os.Setenv("GOGC", "50")
	}
}

// setMaxProcs matches GOMAXPROCS to the CPU quota of the ECS task or
// cgroup the process runs in.
func setMaxProcs() {
	if gomaxecs.IsECS() {
		if _, err := gomaxecs.Set(gomaxecs.WithLogger(simpleLogger)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to set maxprocs from ECS task metadata: %v\n", err)
		}
		return
	}
	if _, err := maxprocs.Set(maxprocs.Logger(simpleLogger)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set maxprocs from cgroup quota: %v\n", err)
	}
}

// setMemoryLimit sets GOMEMLIMIT below the container limit. Buffered merge
// rows live on the heap, so the collector needs to see the real ceiling.
func setMemoryLimit() {
	_, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.8),
		memlimit.WithLogger(slog.Default()),
		memlimit.WithProvider(
			memlimit.ApplyFallback(
				memlimit.FromCgroup,
				memlimit.FromSystem,
			),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set memory limit: %v\n", err)
	}
}

func main() {
	cmd.Execute()
}
