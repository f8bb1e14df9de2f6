package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	httptrace "github.com/DataDog/dd-trace-go/contrib/net/http/v2"
	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/protomaps/go-tzh3/tzh3"
	"github.com/rs/cors"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var cli struct {
	Lookup struct {
		Path   string  `arg:"" help:"Local path or URL of the index."`
		Lat    float64 `required:"" help:"Latitude in degrees, negative values as --lat=-33.8"`
		Lon    float64 `required:"" help:"Longitude in degrees, negative values as --lon=-74.0"`
		Bucket string  `help:"Remote bucket"`
		JSON   bool    `name:"json" help:"Print the result as JSON."`
	} `cmd:"" help:"Look up the timezone at a point."`

	Cell struct {
		Lat        float64 `required:"" help:"Latitude in degrees."`
		Lon        float64 `required:"" help:"Longitude in degrees."`
		Resolution int     `required:"" help:"Grid resolution, 0-15."`
		JSON       bool    `name:"json" help:"Print the result as JSON."`
	} `cmd:"" help:"Print the grid cell containing a point."`

	Show struct {
		Path   string `arg:""`
		Bucket string `help:"Remote bucket"`
		JSON   bool   `name:"json" help:"Print the summary as JSON."`
		Zones  bool   `help:"List the zone table instead of the summary."`
	} `cmd:"" help:"Inspect a local or remote index."`

	Verify struct {
		Input  string `arg:"" help:"Input index."`
		Bucket string `help:"Remote bucket"`
	} `cmd:"" help:"Verifies that an index is valid and unambiguous."`

	Annotate struct {
		Index    string `arg:"" help:"Local path or URL of the index."`
		Input    string `arg:"" help:"GeoJSON FeatureCollection or CSV with Latitude and Longitude columns." type:"existingfile"`
		Output   string `arg:"" help:"Output file, - for stdout."`
		Bucket   string `help:"Remote bucket of the index."`
		Property string `default:"tzid" help:"GeoJSON property to set."`
		Workers  int    `default:"0" help:"Number of lookup workers, 0 for one per CPU."`
	} `cmd:"" help:"Add the timezone of every point in a GeoJSON or CSV file."`

	Convert struct {
		Input      string `arg:"" help:"Input SQLite database." type:"existingfile"`
		Output     string `arg:"" help:"Output index." type:"path"`
		NoCompress bool   `help:"Write the index without the gzip wrapper."`
	} `cmd:"" help:"Build an index from a SQLite database with zones and cells tables."`

	Export struct {
		Input  string `arg:"" help:"Input index."`
		Output string `arg:"" help:"Output SQLite database." type:"path"`
		Bucket string `help:"Remote bucket of input index."`
	} `cmd:"" help:"Write an index into a SQLite database."`

	Serve struct {
		Path      string        `arg:"" help:"Local path, URL or bucket key of the index."`
		Bucket    string        `help:"Remote bucket" env:"TZH3_BUCKET"`
		Port      int           `default:"8080" env:"TZH3_PORT"`
		AdminPort int           `default:"-1" help:"Port to serve Prometheus metrics on, -1 to disable." env:"TZH3_ADMIN_PORT"`
		Cors      string        `help:"Comma separated list of allowed CORS origins." env:"TZH3_CORS"`
		Refresh   time.Duration `default:"5m" help:"How often to check the bucket for a new index, 0 to disable." env:"TZH3_REFRESH"`
	} `cmd:"" help:"Run an HTTP timezone lookup service."`

	Upload struct {
		Input          string `arg:"" type:"existingfile"`
		Key            string `arg:""`
		MaxConcurrency int    `default:"2" help:"# of upload threads"`
		Bucket         string `required:"" help:"Bucket to upload to."`
	} `cmd:"" help:"Validate and upload a local index to remote storage."`

	Version struct {
	} `cmd:"" help:"Show the program version."`
}

type serveMux interface {
	http.Handler
	HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request))
}

func main() {
	if len(os.Args) < 2 {
		os.Args = append(os.Args, "--help")
	}

	logger := log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)
	ctx := kong.Parse(&cli)

	switch ctx.Command() {
	case "lookup <path>":
		err := tzh3.PrintLookup(logger, os.Stdout, cli.Lookup.Bucket, cli.Lookup.Path, cli.Lookup.Lat, cli.Lookup.Lon, cli.Lookup.JSON)
		if err != nil {
			logger.Fatalf("Failed to look up point, %v", err)
		}
	case "cell":
		err := tzh3.PrintCell(os.Stdout, cli.Cell.Lat, cli.Cell.Lon, cli.Cell.Resolution, cli.Cell.JSON)
		if err != nil {
			logger.Fatalf("Failed to compute cell, %v", err)
		}
	case "show <path>":
		err := tzh3.Show(logger, os.Stdout, cli.Show.Bucket, cli.Show.Path, cli.Show.JSON, cli.Show.Zones)
		if err != nil {
			logger.Fatalf("Failed to show index, %v", err)
		}
	case "verify <input>":
		err := tzh3.Verify(logger, cli.Verify.Bucket, cli.Verify.Input)
		if err != nil {
			logger.Fatalf("Failed to verify index, %v", err)
		}
	case "annotate <index> <input> <output>":
		if cli.Annotate.Output == "-" {
			tzh3.SetQuietMode(true)
			logger.SetOutput(os.Stderr)
		}
		err := tzh3.Annotate(logger, cli.Annotate.Bucket, cli.Annotate.Index, cli.Annotate.Input, cli.Annotate.Output, cli.Annotate.Property, cli.Annotate.Workers)
		if err != nil {
			logger.Fatalf("Failed to annotate %s, %v", cli.Annotate.Input, err)
		}
	case "convert <input> <output>":
		err := tzh3.Convert(logger, cli.Convert.Input, cli.Convert.Output, !cli.Convert.NoCompress)
		if err != nil {
			logger.Fatalf("Failed to convert %s, %v", cli.Convert.Input, err)
		}
	case "export <input> <output>":
		err := tzh3.Export(logger, cli.Export.Bucket, cli.Export.Input, cli.Export.Output)
		if err != nil {
			logger.Fatalf("Failed to export %s, %v", cli.Export.Input, err)
		}
	case "serve <path>":
		server, err := tzh3.NewServer(cli.Serve.Bucket, cli.Serve.Path, logger, cli.Serve.Refresh)
		if err != nil {
			logger.Fatalf("Failed to create new server, %v", err)
		}
		tzh3.SetBuildInfo(version, commit, date)
		server.Start(context.Background())

		var mux serveMux = http.NewServeMux()
		if os.Getenv("DD_AGENT_HOST") != "" {
			if err := tracer.Start(tracer.WithService("tzh3"), tracer.WithServiceVersion(version)); err != nil {
				logger.Printf("Failed to start tracer, %v", err)
			} else {
				defer tracer.Stop()
				mux = httptrace.NewServeMux()
			}
		}

		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			statusCode, headers, body := server.Get(r.Context(), r.URL.Path)
			for k, v := range headers {
				w.Header().Set(k, v)
			}
			w.WriteHeader(statusCode)
			w.Write(body)
			logger.Printf("served %d %s in %s", statusCode, r.URL.Path, time.Since(start))
		})

		var handler http.Handler = mux
		if cli.Serve.Cors != "" {
			handler = cors.New(cors.Options{
				AllowedOrigins: strings.Split(cli.Serve.Cors, ","),
				AllowedMethods: []string{http.MethodGet, http.MethodHead},
			}).Handler(mux)
		}

		if cli.Serve.AdminPort > 0 {
			go func() {
				adminMux := http.NewServeMux()
				adminMux.Handle("/metrics", promhttp.Handler())
				logger.Printf("Serving metrics on port %d", cli.Serve.AdminPort)
				logger.Fatal(http.ListenAndServe(":"+strconv.Itoa(cli.Serve.AdminPort), adminMux))
			}()
		}

		logger.Printf("Serving %s %s on port %d with CORS origins: %s\n", cli.Serve.Bucket, cli.Serve.Path, cli.Serve.Port, cli.Serve.Cors)
		logger.Fatal(http.ListenAndServe(":"+strconv.Itoa(cli.Serve.Port), handler))
	case "upload <input> <key>":
		err := tzh3.Upload(logger, cli.Upload.Input, cli.Upload.Bucket, cli.Upload.Key, cli.Upload.MaxConcurrency)
		if err != nil {
			logger.Fatalf("Failed to upload file, %v", err)
		}
	case "version":
		fmt.Printf("tzh3 %s, commit %s, built at %s\n", version, commit, date)
	default:
		panic(ctx.Command())
	}
}
