package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"notai_engine/internal/mockapi"
)

// mock 在本地模拟 notai 游戏服务，任意 token 都会自动注册为演示账号。
// 配合 NOTAI_BASE_URL=http://127.0.0.1:8080 做演练。
func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	api := mockapi.New()
	api.AutoRegister = true

	server := &http.Server{
		Addr:              *addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("mock notai api listening on %s", *addr)
	log.Fatal(server.ListenAndServe())
}
