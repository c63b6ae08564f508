package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/CedrosPay/txupdate/internal/config"
	"github.com/CedrosPay/txupdate/internal/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("TXU_CONFIG_PATH"), "path to config yaml (optional)")
	timeout := flag.Duration("timeout", 3*time.Minute, "overall deadline")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	storeCfg := storage.StoreConfigFrom(cfg.Storage)
	switch storeCfg.Backend {
	case "", "dynamodb":
		client, err := storage.NewDynamoDBClient(ctx, storeCfg.DynamoDB)
		if err != nil {
			log.Fatalf("dynamodb client: %v", err)
		}
		created, err := storage.EnsureDynamoDBTable(ctx, client, storeCfg.TableName)
		if err != nil {
			log.Fatalf("ensure table: %v", err)
		}
		if created {
			fmt.Println("✓ Created DynamoDB table", storeCfg.TableName)
		} else {
			fmt.Println("✓ DynamoDB table", storeCfg.TableName, "already exists")
		}
	case "memory":
		log.Fatalf("memory backend has no table to create")
	default:
		// Postgres and MongoDB stores create their table or indexes on open
		store, err := storage.NewStore(ctx, storeCfg)
		if err != nil {
			log.Fatalf("open %s store: %v", storeCfg.Backend, err)
		}
		if err := store.Close(); err != nil {
			log.Fatalf("close store: %v", err)
		}
		fmt.Printf("✓ %s table %s is ready\n", storeCfg.Backend, storeCfg.TableName)
	}
}
