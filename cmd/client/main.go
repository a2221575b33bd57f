package main

import (
	"context"
	"log"
	"time"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/chn0318/redolog/redolog"
	"github.com/chn0318/redolog/redologserver"
)

func main() {
	addr := pflag.String("addr", "localhost:50051", "gRPC server address")
	mailbox := pflag.Int32("mailbox", 10, "mailbox id of the sample transaction")
	del := pflag.Bool("delete", false, "delete all redo log streams afterwards")
	pflag.Parse()

	conn, err := grpc.Dial(*addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		log.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	client := redologserver.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	txn := redolog.TransactionID{Time: int32(time.Now().Unix()), Counter: 1}
	ops := []*redolog.Op{
		{Mailbox: *mailbox, Txn: txn, Code: 1, Time: time.Now().UnixMilli(), Start: true},
		{Mailbox: *mailbox, Txn: txn, Code: 2, Time: time.Now().UnixMilli()},
		{Mailbox: *mailbox, Txn: txn, Code: 3, Time: time.Now().UnixMilli(), End: true},
	}

	log.Println("=== Log ===")
	for _, op := range ops {
		if err := client.Log(ctx, op, []byte("sample"), false); err != nil {
			log.Fatalf("Log error: %v", err)
		}
	}
	log.Printf("logged txnId=%s", txn)

	log.Println("=== IsEmpty / Exists ===")
	empty, err := client.IsEmpty(ctx)
	if err != nil {
		log.Fatalf("IsEmpty error: %v", err)
	}
	exists, err := client.Exists(ctx)
	if err != nil {
		log.Fatalf("Exists error: %v", err)
	}
	log.Printf("empty=%v exists=%v", empty, exists)

	log.Println("=== Status ===")
	st, err := client.Status(ctx)
	if err != nil {
		log.Fatalf("Status error: %v", err)
	}
	log.Println(protojson.Format(st))

	if *del {
		log.Println("=== Delete ===")
		ok, err := client.Delete(ctx)
		if err != nil {
			log.Fatalf("Delete error: %v", err)
		}
		log.Printf("deleted=%v", ok)
	}
}
