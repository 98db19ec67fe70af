// main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"rpi-rover/rpc"
)

// roverctl is a minimal one-shot demo client exercising the RPC
// surface; it is not meant to grow into a full CLI.
func main() {
	addr := flag.String("addr", "127.0.0.1:7788", "rover server address")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: roverctl -addr host:port <forward|backward|left|right|stop|distance> [speed]")
		os.Exit(2)
	}

	client, err := rpc.NewClient(*addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx := context.Background()
	if err := run(ctx, client, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, client *rpc.Client, args []string) error {
	speed := uint8(150)
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		speed = uint8(n)
	}

	switch args[0] {
	case "forward":
		return client.Mover.MoveForward(ctx, speed)
	case "backward":
		return client.Mover.MoveBackward(ctx, speed)
	case "left":
		return client.Mover.SpinLeft(ctx, speed)
	case "right":
		return client.Mover.SpinRight(ctx, speed)
	case "stop":
		return client.Mover.Stop(ctx)
	case "distance":
		d, err := client.Sensor.ScanDistance(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%.1f mm\n", d)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
