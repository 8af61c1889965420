// Package grpc provides the gRPC transport for the OJS retry service.
//
// The service exposes the standard grpc.health.v1 Health service so that
// load balancers and orchestrators can probe it the same way they probe the
// HTTP health endpoint. Status is driven by periodic dependency probes.
//
// # Usage
//
//	import (
//	    ojsgrpc "github.com/openjobspec/ojs-retry/internal/grpc"
//	    "google.golang.org/grpc"
//	)
//
//	grpcServer := grpc.NewServer()
//	healthSvc := ojsgrpc.NewHealthService(checks, logger)
//	healthSvc.Register(grpcServer)
//	lis, _ := net.Listen("tcp", ":9090")
//	grpcServer.Serve(lis)
package grpc
