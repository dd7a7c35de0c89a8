// Generate writes sales.parquet, the sample dataset used in the examples:
//
//	go run ./testdata/generate.go
//	cubecat -f table -config testdata/view.yaml sales.parquet
package main

import (
	"log"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
)

type Sale struct {
	ID      int64    `parquet:"id"`
	Region  string   `parquet:"region"`
	Product string   `parquet:"product"`
	Day     int32    `parquet:"day,date"`
	Qty     int32    `parquet:"qty"`
	Amount  float64  `parquet:"amount"`
	Note    *string  `parquet:"note,optional"`
	Tags    []string `parquet:"tags,list"`
}

func main() {
	regions := []string{"East", "West", "North", "South"}
	products := []string{"alpha", "beta", "gamma"}
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	rush := "rush"

	var sales []Sale
	for i := 0; i < 240; i++ {
		day := start.AddDate(0, 0, i%120)
		s := Sale{
			ID:      int64(i + 1),
			Region:  regions[i%len(regions)],
			Product: products[(i/len(regions))%len(products)],
			Day:     int32(day.Unix() / 86400),
			Qty:     int32(1 + i%7),
			Amount:  float64(10+(i*37)%250) + 0.5,
		}
		if i%11 == 0 {
			s.Note = &rush
			s.Tags = []string{"priority"}
		}
		sales = append(sales, s)
	}

	file, err := os.Create("sales.parquet")
	if err != nil {
		log.Fatal(err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[Sale](file)
	defer writer.Close()

	if _, err := writer.Write(sales); err != nil {
		log.Fatal(err)
	}

	log.Printf("Generated sales.parquet with %d sales", len(sales))
}
