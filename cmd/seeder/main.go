//cmd/seeder/main.go
package main

import (
    "database/sql"
    "fmt"
    "log"
    "os"

    _ "github.com/lib/pq"
)

func main() {
    dsn := os.Getenv("DATABASE_URL")
    db, err := sql.Open("postgres", dsn)
    if err != nil {
        log.Fatal(err)
    }
    defer db.Close()

    sqlFiles := []string{
        "scripts/schema.sql",
    }
    if len(os.Args) > 1 {
        sqlFiles = append(sqlFiles, os.Args[1:]...)
    }

    for _, file := range sqlFiles {
        content, err := os.ReadFile(file)
        if err != nil {
            log.Fatalf("failed to read %s: %v", file, err)
        }

        _, err = db.Exec(string(content))
        if err != nil {
            log.Fatalf("failed to execute %s: %v", file, err)
        }
        fmt.Printf("Applied: %s\n", file)
    }

    fmt.Println("Database setup completed successfully!")
}
