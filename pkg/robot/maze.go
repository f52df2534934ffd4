package robot

// MazeGeometry describes the competition maze: a grid of square cells
// separated by zero-width walls. Rows increase northward and columns
// eastward; the origin is the south-west corner.
//
// The drive loop does not use it. It is carried for the dashboard.
type MazeGeometry struct {
	Rows        int `json:"rows"`
	Columns     int `json:"columns"`
	CellWidthMM int `json:"cell_width_mm"`
}

// DefaultMaze returns the 12 x 4 maze with 712 mm cells.
func DefaultMaze() MazeGeometry {
	return MazeGeometry{Rows: 12, Columns: 4, CellWidthMM: 712}
}

// Pose is a cell position in the maze.
type Pose struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Contains reports whether p lies inside the maze.
func (m MazeGeometry) Contains(p Pose) bool {
	return p.Row >= 0 && p.Row < m.Rows && p.Column >= 0 && p.Column < m.Columns
}

// SizeMM returns the maze width (east-west) and height (north-south) in millimetres.
func (m MazeGeometry) SizeMM() (width, height int) {
	return m.Columns * m.CellWidthMM, m.Rows * m.CellWidthMM
}
