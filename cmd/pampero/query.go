package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meteosur/pampero/pkg/pampero"
	"github.com/meteosur/pampero/pkg/pampero/config"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

// newViper binds the command's flags under the PAMPERO environment prefix
// so every flag can also come from a PAMPERO_<FLAG> variable.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("PAMPERO")
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return v, nil
}

func newService() (*pampero.Service, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %v", err)
	}
	svc, err := pampero.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing service: %v", err)
	}
	return svc, nil
}

func addPointFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("lat", defaultLat, "latitude")
	cmd.Flags().Float64("lon", defaultLon, "longitude")
	cmd.Flags().StringSlice("fuentes", nil, "sources to query (default all active)")
	cmd.Flags().Bool("json", false, "emit JSON instead of text")
}

func flagSources(v *viper.Viper) []meteo.SourceID {
	var sources []meteo.SourceID
	for _, label := range v.GetStringSlice("fuentes") {
		if label = strings.TrimSpace(label); label != "" {
			sources = append(sources, meteo.SourceID(label))
		}
	}
	return sources
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newPronosticoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pronostico",
		Short: "Print the fused forecast for a point",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			lat, lon := v.GetFloat64("lat"), v.GetFloat64("lon")
			forecasts, err := svc.GetUnifiedForecast(cmd.Context(), lat, lon, v.GetInt("horas"), flagSources(v))
			if err != nil {
				return err
			}
			if v.GetBool("json") {
				return printJSON(forecasts)
			}
			fmt.Printf("Pronóstico unificado para (%.2f, %.2f)\n", lat, lon)
			printForecastTable(forecasts)
			return nil
		},
	}
	addPointFlags(cmd)
	cmd.Flags().Int("horas", 24, "forecast horizon in hours")
	return cmd
}

func newAlertasCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alertas",
		Short: "Print detected patterns and operational alerts for a point",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			lat, lon, horas := v.GetFloat64("lat"), v.GetFloat64("lon"), v.GetInt("horas")
			forecasts, err := svc.GetUnifiedForecast(cmd.Context(), lat, lon, horas, flagSources(v))
			if err != nil {
				return err
			}
			cape := svc.FetchCAPE(cmd.Context(), lat, lon, horas)
			patterns := svc.DetectPatterns(forecasts, cape)
			alerts := svc.GenerateAlerts(patterns, forecasts)

			if v.GetBool("json") {
				return printJSON(map[string]interface{}{
					"patrones": patterns,
					"alertas":  alerts,
				})
			}
			printPatterns(patterns)
			printAlerts(alerts)
			return nil
		},
	}
	addPointFlags(cmd)
	cmd.Flags().Int("horas", riskContextHours, "forecast horizon in hours")
	return cmd
}

func newRiesgoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "riesgo",
		Short: "Print the activity risk score for a point and profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			lat, lon := v.GetFloat64("lat"), v.GetFloat64("lon")
			forecasts, err := svc.GetUnifiedForecast(cmd.Context(), lat, lon, riskContextHours, flagSources(v))
			if err != nil {
				return err
			}
			cape := svc.FetchCAPE(cmd.Context(), lat, lon, riskContextHours)
			patterns := svc.DetectPatterns(forecasts, cape)
			alerts := svc.GenerateAlerts(patterns, forecasts)

			score, err := svc.CalculateRisk(meteo.Profile(v.GetString("perfil")), forecasts, patterns, alerts, v.GetInt("horas"))
			if err != nil {
				return err
			}
			if v.GetBool("json") {
				return printJSON(score)
			}
			printRisk(score)
			return nil
		},
	}
	addPointFlags(cmd)
	cmd.Flags().String("perfil", string(meteo.ProfileGeneral), "activity profile")
	cmd.Flags().Int("horas", 0, "assessment window in hours (default 6)")
	return cmd
}

func printForecastTable(forecasts []meteo.UnifiedForecast) {
	if len(forecasts) == 0 {
		fmt.Println("Sin datos de ninguna fuente.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HORA\tTEMP °C\tVIENTO m/s\tPRECIP mm\tCONFIANZA\tFUENTES")
	for _, f := range forecasts {
		fmt.Fprintf(w, "+%d\t%s\t%s\t%s\t%s\t%d/%d\n",
			f.ForecastHour,
			formatValue(f.TemperatureC),
			formatValue(f.WindSpeedMS),
			formatValue(f.PrecipMM),
			f.ConfidenceLevel,
			len(f.SourcesUsed),
			f.SourcesAvailable)
	}
	w.Flush()
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func printPatterns(patterns []meteo.DetectedPattern) {
	if len(patterns) == 0 {
		fmt.Println("Sin patrones meteorológicos detectados.")
		return
	}
	fmt.Println("Patrones detectados:")
	for _, p := range patterns {
		fmt.Printf("  [%s] %s: %s\n", p.RiskLevel, p.Title, p.Description)
	}
}

func printAlerts(alerts []meteo.OperationalAlert) {
	fmt.Println("Alertas:")
	for _, a := range alerts {
		fmt.Printf("  Nivel %d (%s) %s, ventana %s: %s\n",
			a.Level, a.LevelName, a.Phenomenon, a.TimeWindow, a.Description)
		if a.Recommendation != "" {
			fmt.Printf("    Recomendación: %s\n", a.Recommendation)
		}
	}
}

func printRisk(score meteo.RiskScore) {
	fmt.Printf("Riesgo %.1f/5 (%s) para el perfil %s, próximas %d horas\n",
		score.Score, score.Category, score.Profile, score.ValidForHours)
	if len(score.MainRiskFactors) > 0 {
		fmt.Println("Factores principales:")
		for _, factor := range score.MainRiskFactors {
			fmt.Printf("  - %s\n", factor)
		}
	}
	fmt.Printf("Recomendación: %s\n", score.Recommendation)
	if score.ActionRequired {
		fmt.Println("Se requiere acción inmediata.")
	}
}
