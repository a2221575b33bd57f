package main

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/chn0318/redolog/redolog"
	"github.com/chn0318/redolog/redologserver"
)

func main() {
	addr := pflag.String("addr", "localhost:50051", "gRPC server address")
	totalTxn := pflag.Int("total-transactions", 10000, "total number of transactions")
	concurrency := pflag.Int("concurrency", 32, "number of concurrent workers")
	opsPerTxn := pflag.Int("ops-per-txn", 3, "body records per transaction, between start and commit")
	mailboxes := pflag.Int("mailboxes", 1000, "number of distinct mailbox ids")
	payloadSize := pflag.Int("payload-bytes", 1024, "payload size in bytes")

	pflag.Parse()
	if err := checkFlags(*totalTxn, *concurrency, *opsPerTxn, *mailboxes, *payloadSize); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	log.Printf("Log benchmark start: addr=%s, txns=%d, concurrency=%d, ops-per-txn=%d, payload-bytes=%d\n",
		*addr, *totalTxn, *concurrency, *opsPerTxn, *payloadSize)

	// one connection shared by all workers
	conn, err := grpc.Dial(*addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		log.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	client := redologserver.NewClient(conn)

	payload := make([]byte, *payloadSize)
	rand.Read(payload)

	jobs := make(chan int32, *totalTxn)
	var (
		wg        sync.WaitGroup
		errCount  atomic.Int64
		records   atomic.Int64
		startTime = time.Now()
		epoch     = int32(startTime.Unix())
	)

	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				txn := redolog.TransactionID{Time: epoch, Counter: id}
				mbox := 1 + id%int32(*mailboxes)

				ops := make([]*redolog.Op, 0, *opsPerTxn+2)
				ops = append(ops, &redolog.Op{Mailbox: mbox, Txn: txn, Code: 1, Start: true})
				for i := 0; i < *opsPerTxn; i++ {
					ops = append(ops, &redolog.Op{Mailbox: mbox, Txn: txn, Code: 2})
				}
				ops = append(ops, &redolog.Op{Mailbox: mbox, Txn: txn, Code: 3, End: true})

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				for _, op := range ops {
					op.Time = time.Now().UnixMilli()
					if err := client.Log(ctx, op, payload, false); err != nil {
						errCount.Add(1)
						break
					}
					records.Add(1)
				}
				cancel()
			}
		}()
	}

	for i := 0; i < *totalTxn; i++ {
		jobs <- int32(i)
	}
	close(jobs)

	wg.Wait()
	elapsed := time.Since(startTime).Seconds()

	successTxn := int64(*totalTxn) - errCount.Load()
	totalBytes := float64(records.Load() * int64(*payloadSize))

	log.Printf("=== Log benchmark result ===")
	log.Printf("Total transactions:  %d", *totalTxn)
	log.Printf("Failed transactions: %d", errCount.Load())
	log.Printf("Records issued:      %d", records.Load())
	log.Printf("Elapsed time:        %.3f s", elapsed)
	log.Printf("Throughput:          %.2f txn/s", float64(successTxn)/elapsed)
	log.Printf("Record throughput:   %.2f rec/s", float64(records.Load())/elapsed)
	log.Printf("Data throughput:     %.2f MB/s", totalBytes/(1024*1024)/elapsed)
}

func checkFlags(totalTxn, concurrency, opsPerTxn, mailboxes, payloadSize int) error {
	switch {
	case totalTxn < 0:
		return errors.Errorf("total-transactions must not be negative, got %d", totalTxn)
	case concurrency < 1:
		return errors.Errorf("concurrency must be at least 1, got %d", concurrency)
	case opsPerTxn < 0:
		return errors.Errorf("ops-per-txn must not be negative, got %d", opsPerTxn)
	case mailboxes < 1:
		return errors.Errorf("mailboxes must be at least 1, got %d", mailboxes)
	case payloadSize < 0:
		return errors.Errorf("payload-bytes must not be negative, got %d", payloadSize)
	}
	return nil
}
