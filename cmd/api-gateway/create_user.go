package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/teacher-training-api/internal/dto"
	"github.com/noah-isme/teacher-training-api/internal/models"
)

var (
	createUserEmail    string
	createUserName     string
	createUserRole     string
	createUserCluster  string
	createUserEmployee string
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a teacher or admin account",
	Long: `Create a teacher or admin account. The password is read from the
TT_NEW_USER_PASSWORD environment variable so it never appears in shell history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := os.Getenv("TT_NEW_USER_PASSWORD")
		if password == "" {
			return errors.New("TT_NEW_USER_PASSWORD is not set")
		}

		a, err := bootstrap(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.close()

		user, err := a.accounts.Provision(cmd.Context(), dto.CreateAccountRequest{
			Email:      createUserEmail,
			Password:   password,
			FullName:   createUserName,
			Role:       models.UserRole(strings.ToUpper(createUserRole)),
			Cluster:    createUserCluster,
			EmployeeID: createUserEmployee,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Email, user.ID)
		return nil
	},
}

func init() {
	createUserCmd.Flags().StringVar(&createUserEmail, "email", "", "Login email")
	createUserCmd.Flags().StringVar(&createUserName, "name", "", "Full name")
	createUserCmd.Flags().StringVar(&createUserRole, "role", string(models.RoleTeacher), "TEACHER, ADMIN or SUPERADMIN")
	createUserCmd.Flags().StringVar(&createUserCluster, "cluster", "", "School cluster, required for teachers")
	createUserCmd.Flags().StringVar(&createUserEmployee, "employee-id", "", "Employee number, required for teachers")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(createUserCmd)
}
