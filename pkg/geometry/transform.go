package geometry

import "math"

// Mat3 is a row-major 3x3 matrix, used only for the small, fixed-size
// rotation part of an SE3 transform. Larger or variable-sized linear
// algebra (triangulation, the optimizer's normal equations) goes through
// gonum/mat instead; see DESIGN.md.
type Mat3 [3][3]float64

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// Apply returns m*v.
func (m Mat3) Apply(v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Mul returns m*o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += m[i][k] * o[k][j]
			}
			r[i][j] = s
		}
	}
	return r
}

// Transpose returns m^T, which equals m^-1 for a rotation matrix.
func (m Mat3) Transpose() Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[j][i] = m[i][j]
		}
	}
	return r
}

// SE3 is a rigid transform: a rotation followed by a translation,
// p' = R*p + T. In this codebase it is used as a world<->camera pose.
type SE3 struct {
	R Mat3
	T Vec3
}

// IdentitySE3 returns the identity transform.
func IdentitySE3() SE3 {
	return SE3{R: Identity3()}
}

// Apply transforms a point by the rigid motion.
func (s SE3) Apply(v Vec3) Vec3 {
	return s.R.Apply(v).Add(s.T)
}

// Compose returns the transform equivalent to applying o first, then s:
// (s.Compose(o)).Apply(v) == s.Apply(o.Apply(v)).
func (s SE3) Compose(o SE3) SE3 {
	return SE3{
		R: s.R.Mul(o.R),
		T: s.R.Apply(o.T).Add(s.T),
	}
}

// Inverse returns the inverse rigid transform.
func (s SE3) Inverse() SE3 {
	rt := s.R.Transpose()
	return SE3{
		R: rt,
		T: rt.Apply(s.T).Scale(-1),
	}
}

// skew returns the 3x3 skew-symmetric cross-product matrix of v, i.e.
// skew(v)*x == v.Cross(x).
func skew(v Vec3) Mat3 {
	return Mat3{
		{0, -v.Z, v.Y},
		{v.Z, 0, -v.X},
		{-v.Y, v.X, 0},
	}
}

// ExpSE3 computes the SE(3) exponential map of a 6-vector xi = (rho, phi),
// rho the translation part and phi the so(3) rotation part, using the
// closed-form Rodrigues/left-Jacobian formulas. This is the update used
// by the pose-only optimizer: each Gauss-Newton step solves for xi
// and applies the perturbation as ExpSE3(xi).Compose(pose).
func ExpSE3(rho, phi Vec3) SE3 {
	theta := phi.Norm()

	var r Mat3
	var v Mat3
	if theta < 1e-10 {
		r = Identity3()
		v = Identity3()
	} else {
		axis := phi.Scale(1 / theta)
		k := skew(axis)
		kk := k.Mul(k)
		sinT := math.Sin(theta)
		cosT := math.Cos(theta)

		r = addMat3(addMat3(Identity3(), scaleMat3(k, sinT)), scaleMat3(kk, 1-cosT))

		v = addMat3(addMat3(Identity3(), scaleMat3(k, (1-cosT)/theta)), scaleMat3(kk, (theta-sinT)/theta))
	}

	return SE3{R: r, T: v.Apply(rho)}
}

func addMat3(a, b Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = a[i][j] + b[i][j]
		}
	}
	return r
}

func scaleMat3(a Mat3, s float64) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = a[i][j] * s
		}
	}
	return r
}
