package pattern

import (
	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

type recKey struct {
	pattern meteo.PatternType
	level   meteo.RiskLevel
}

// recommendations holds the operational guidance per (pattern, risk level).
// Wording follows the style of SMN public advisories.
var recommendations = map[recKey][]string{
	{meteo.PatternSevereConvectiveStorm, meteo.RiskModerate}: {
		"Asegurar objetos sueltos en exteriores",
		"Consultar el radar antes de realizar actividades al aire libre",
	},
	{meteo.PatternSevereConvectiveStorm, meteo.RiskHigh}: {
		"Evitar actividades al aire libre durante la tormenta",
		"No refugiarse bajo árboles ni estructuras precarias",
		"Desconectar equipos eléctricos sensibles",
	},
	{meteo.PatternSevereConvectiveStorm, meteo.RiskExtreme}: {
		"Permanecer en un lugar cerrado y alejado de ventanas",
		"Suspender toda actividad al aire libre",
		"Atención a la posibilidad de granizo y ráfagas destructivas",
	},
	{meteo.PatternHeatWave, meteo.RiskModerate}: {
		"Aumentar la hidratación durante el día",
		"Evitar la exposición al sol entre las 10 y las 16",
	},
	{meteo.PatternHeatWave, meteo.RiskHigh}: {
		"Beber agua con frecuencia sin esperar a tener sed",
		"Suspender la actividad física intensa en horas centrales",
		"Prestar atención a niños y adultos mayores",
	},
	{meteo.PatternHeatWave, meteo.RiskExtreme}: {
		"Permanecer en ambientes frescos o climatizados",
		"Suspender toda actividad física al aire libre",
		"Consultar al médico ante síntomas de golpe de calor",
	},
	{meteo.PatternColdWave, meteo.RiskModerate}: {
		"Abrigarse en capas al salir",
		"Proteger las plantas sensibles durante la noche",
	},
	{meteo.PatternColdWave, meteo.RiskHigh}: {
		"Limitar el tiempo de exposición al frío",
		"Revisar estufas y ventilación para evitar intoxicación por monóxido de carbono",
	},
	{meteo.PatternColdWave, meteo.RiskExtreme}: {
		"Evitar salir en las horas de menor temperatura",
		"Extremar el cuidado de personas en situación de calle",
		"Proteger cañerías y medidores del congelamiento",
	},
	{meteo.PatternFrost, meteo.RiskModerate}: {
		"Cubrir cultivos y plantas sensibles",
		"Precaución por posible formación de hielo en calzadas",
	},
	{meteo.PatternFrost, meteo.RiskHigh}: {
		"Proteger cultivos con riego por aspersión o coberturas",
		"Conducir con precaución en puentes y zonas a la sombra",
	},
	{meteo.PatternFrost, meteo.RiskExtreme}: {
		"Activar defensas antiheladas en cultivos",
		"Evitar circular de madrugada por rutas con hielo",
		"Resguardar los animales de corral",
	},
	{meteo.PatternExtremeHeat, meteo.RiskExtreme}: {
		"Permanecer en lugares frescos y ventilados",
		"Hidratarse de forma continua",
		"No dejar personas ni animales dentro de vehículos",
	},
}

// recommendationsFor never returns an empty list; alerts and risk scoring
// rely on having at least one action per detected pattern.
func recommendationsFor(pattern meteo.PatternType, level meteo.RiskLevel) []string {
	if recs, ok := recommendations[recKey{pattern, level}]; ok {
		return recs
	}
	return []string{"Seguir las actualizaciones del Servicio Meteorológico Nacional"}
}
